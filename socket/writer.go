package socket

import (
	"errors"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"golang.org/x/sys/unix"
)

// Writer drains a chain's input channel onto a socket, grounded on
// LLIOSocketWriter.
type Writer struct {
	iopipe.Base
	destination *Socket
	lastWritten *buffer.Addr
	initialized bool
}

// NewWriter wraps destination for use as the last pipe in a reactor chain.
func NewWriter(destination *Socket) *Writer {
	return &Writer{destination: destination}
}

// Process implements iopipe.Pipe.
func (w *Writer) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if w.destination == nil {
		return iopipe.PRECONDITION_NOT_MET
	}

	if !w.initialized {
		w.initialized = true
		if pump != nil {
			pump.SetConditional(w, &iopipe.PollDesc{Fd: w.destination.FD(), Writable: true})
		}
	}

	// NB: buf's exported methods each take their own internal lock; do not
	// wrap this loop in buf.Lock()/Unlock(), which would self-deadlock.
	done := false
	for {
		seg, ok := buf.ConstructSegmentAfter(w.lastWritten)
		if !ok {
			done = true
			break
		}

		if !seg.IsOnChannel(channels.In()) {
			last := seg.Last()
			w.lastWritten = &last
			continue
		}

		data := seg.Data()
		n, err := unix.Write(w.destination.FD(), data)
		if n > 0 {
			addr := seg.AddrAtOffset(n - 1)
			w.lastWritten = &addr
		}
		if errors.Is(err, unix.EAGAIN) {
			break
		}
		if err != nil {
			return iopipe.ERROR
		}
		if n < len(data) {
			break
		}
	}

	if done && *eos {
		return iopipe.DONE
	}
	return iopipe.OK
}

// IsValid reports whether the underlying socket is still set.
func (w *Writer) IsValid() bool { return w.destination != nil }
