package socket

import (
	"errors"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"golang.org/x/sys/unix"
)

const readBufSize = 1024

// Reader pulls bytes off a socket into the chain's output channel,
// grounded on LLIOSocketReader.
type Reader struct {
	iopipe.Base
	source      *Socket
	initialized bool
}

// NewReader wraps source for use as the first pipe in a reactor chain.
func NewReader(source *Socket) *Reader {
	return &Reader{source: source}
}

// Process implements iopipe.Pipe.
func (r *Reader) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if r.source == nil {
		return iopipe.PRECONDITION_NOT_MET
	}

	if !r.initialized {
		r.initialized = true
		if pump != nil {
			pump.SetConditional(r, &iopipe.PollDesc{Fd: r.source.FD(), Readable: true})
		}
	}

	readBuf := make([]byte, readBufSize)
	var n int
	var err error
	for {
		n, err = unix.Read(r.source.FD(), readBuf)
		if n > 0 {
			buf.Append(channels.Out(), readBuf[:n])
		}
		if err != nil || n < readBufSize {
			break
		}
	}

	switch {
	case n == 0 && err == nil:
		if pump != nil {
			pump.SetConditional(r, nil)
		}
		*eos = true
		return iopipe.DONE
	case errors.Is(err, unix.EAGAIN):
		return iopipe.OK
	case err != nil:
		return iopipe.ERROR
	default:
		return iopipe.OK
	}
}

// IsValid reports whether the underlying socket is still set.
func (r *Reader) IsValid() bool { return r.source != nil }
