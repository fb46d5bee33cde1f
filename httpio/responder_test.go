package httpio

import (
	"strings"
	"testing"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
	"github.com/stretchr/testify/require"
)

type recordingPump struct {
	stubPump
	added []*iopipe.Chain
}

func (p *recordingPump) AddChain(chain *iopipe.Chain, timeoutSeconds float32) {
	p.added = append(p.added, chain)
}

// runChain drives every link of chain to completion, the same way a real
// Pump would, so the test can assert on the bytes the chain ultimately
// produces without depending on package pump.
func runChain(t *testing.T, chain *iopipe.Chain, pump iopipe.Pump) {
	t.Helper()
	for _, link := range chain.Links {
		eos := true
		status := link.Pipe.Process(link.Channels, chain.Buf, &eos, chain.Ctx, pump)
		require.True(t, status.IsSuccess(), "pipe returned %s", status)
	}
}

func TestResponderParsesRequestLineAndDispatches(t *testing.T) {
	router := NewRouter()
	router.Handle("/hello", &Node{
		Get: func(resp *Response, ctx *iopipe.Context, params interface{}) {
			resp.Result(sd.Map{"greeting": "hi"})
		},
	})

	r := NewResponder(router, "127.0.0.1", 9000)
	buf := buffer.NewArray()
	channels := buf.NextChannel()
	buf.Append(channels.In(), []byte("GET /hello HTTP/1.0\r\n\r\n"))

	pump := &recordingPump{}
	eos := true
	status := r.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.STOP, status)
	require.Len(t, pump.added, 1)

	sub := pump.added[0]
	runChain(t, sub, pump)

	outChannel := sub.Links[len(sub.Links)-1].Channels.Out()
	n := buf.CountAfter(outChannel, nil)
	out := make([]byte, n)
	buf.ReadAfter(outChannel, nil, out)

	text := string(out)
	require.True(t, strings.HasPrefix(text, "HTTP/1.0 200 OK\r\n"))
	require.Contains(t, text, `{"greeting":"hi"}`)
}

func TestResponderUnknownRouteReturns404(t *testing.T) {
	router := NewRouter()
	r := NewResponder(router, "127.0.0.1", 9000)

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	buf.Append(channels.In(), []byte("GET /missing HTTP/1.0\r\n\r\n"))

	pump := &recordingPump{}
	eos := true
	status := r.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.DONE, status)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)
	require.Contains(t, string(out), "404")
}

func TestResponderMalformedRequestLineIsBadRequest(t *testing.T) {
	router := NewRouter()
	r := NewResponder(router, "127.0.0.1", 9000)

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	buf.Append(channels.In(), []byte("FROB /hello HTTP/1.0\r\n\r\n"))

	pump := &recordingPump{}
	eos := true
	status := r.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.DONE, status)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)
	require.Contains(t, string(out), "400")
}

func TestResponderHandlesSimpleHTTP09Request(t *testing.T) {
	router := NewRouter()
	router.Handle("/hello", &Node{
		Get: func(resp *Response, ctx *iopipe.Context, params interface{}) {
			resp.Result(sd.Map{"greeting": "hi"})
		},
	})

	r := NewResponder(router, "127.0.0.1", 9000)
	buf := buffer.NewArray()
	channels := buf.NextChannel()
	buf.Append(channels.In(), []byte("GET /hello\n"))

	pump := &recordingPump{}
	eos := true
	status := r.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.STOP, status)
	require.Len(t, pump.added, 1)
}

func TestResponderWaitsForFullBodyBeforeDispatch(t *testing.T) {
	router := NewRouter()
	var receivedParams interface{}
	router.Handle("/echo", &Node{
		Post: func(resp *Response, ctx *iopipe.Context, params interface{}) {
			receivedParams = params
			resp.Result(params)
		},
	})

	r := NewResponder(router, "127.0.0.1", 9000)
	buf := buffer.NewArray()
	channels := buf.NextChannel()

	// headers arrive first, body streams in on a later call.
	buf.Append(channels.In(), []byte("POST /echo HTTP/1.0\r\nContent-Length: 10\r\n\r\n"))
	pump := &recordingPump{}
	eos := true
	status := r.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.BREAK, status)
	require.Empty(t, pump.added)

	buf.Append(channels.In(), []byte(`{"a":"bc"}`))
	status = r.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.STOP, status)
	require.Len(t, pump.added, 1)

	runChain(t, pump.added[0], pump)
	require.NotNil(t, receivedParams)
}
