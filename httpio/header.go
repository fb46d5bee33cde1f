package httpio

import (
	"strconv"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
)

// ResponseHeader prepends an HTTP/1.0 status line and headers onto an
// already-produced response body, grounded on LLHTTPResponseHeader. It
// waits for eos (the pipe ahead of it in the chain has finished producing
// the body), then moves the body from its input channel to its output
// channel and prepends the header block in front of it.
type ResponseHeader struct {
	iopipe.Base
}

// NewResponseHeader returns a response header writer pipe.
func NewResponseHeader() *ResponseHeader {
	return &ResponseHeader{}
}

// Process implements iopipe.Pipe.
func (h *ResponseHeader) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if !*eos {
		return iopipe.BREAK
	}

	code, message, headers := readResponseInfo(ctx)
	if code < 200 {
		code, message = 200, "OK"
	}

	bodyLen := buf.CountAfter(channels.In(), nil)

	header := []byte("HTTP/1.0 " + strconv.Itoa(code) + " " + message + "\r\n")
	if bodyLen > 0 {
		header = append(header, []byte("Content-Length: "+strconv.Itoa(bodyLen)+"\r\n")...)
	}
	for _, pair := range headers {
		name, _ := pair[0].(string)
		value, _ := pair[1].(string)
		header = append(header, []byte(name+": "+value+"\r\n")...)
	}
	header = append(header, '\r', '\n')

	// Move the already-written body from this pipe's input lane to its
	// output lane, then stick the header block in front of it, exactly the
	// LLChangeChannel-then-prepend sequence in
	// LLHTTPResponseHeader::process_impl.
	buf.ChangeChannel(channels.In(), channels.Out())
	buf.Prepend(channels.Out(), header)

	return iopipe.DONE
}

func readResponseInfo(ctx *iopipe.Context) (code int, message string, headers sd.Array) {
	resp, ok := ctx.Get(contextResponse)
	if !ok {
		return 0, "", nil
	}
	m, ok := resp.(sd.Map)
	if !ok {
		return 0, "", nil
	}
	if c, ok := m["code"].(int64); ok {
		code = int(c)
	}
	message, _ = m["message"].(string)
	headers, _ = m[contextHeaders].(sd.Array)
	return code, message, headers
}
