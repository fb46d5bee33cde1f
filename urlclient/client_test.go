package urlclient

import (
	"testing"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/stretchr/testify/require"
)

func TestContextURLExtractorCopiesBodyAndExtractsURL(t *testing.T) {
	buf := buffer.NewArray()
	channels := buf.NextChannel()
	buf.Append(channels.In(), []byte("payload"))

	ctx := iopipe.NewContext()
	ctx.Set(ContextDestURI, "http://example.invalid/agent")

	var got string
	e := &ContextURLExtractor{SetURL: func(url string) { got = url }}

	eos := true
	status := e.Process(channels, buf, &eos, ctx, nil)
	require.Equal(t, iopipe.DONE, status)
	require.Equal(t, "http://example.invalid/agent", got)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)
	require.Equal(t, "payload", string(out))
}

func TestContextURLExtractorMissingDestIsError(t *testing.T) {
	buf := buffer.NewArray()
	channels := buf.NextChannel()
	ctx := iopipe.NewContext()

	e := &ContextURLExtractor{SetURL: func(string) {}}
	eos := true
	status := e.Process(channels, buf, &eos, ctx, nil)
	require.Equal(t, iopipe.ERROR, status)
}

func TestNewChainMarksHasOutboundRequest(t *testing.T) {
	buf := buffer.NewArray()
	channels := buf.NextChannel()

	chain := NewChain(buf, channels, []iopipe.Pipe{&ContextURLExtractor{SetURL: func(string) {}}})
	require.True(t, chain.HasOutboundRequest)
	require.Len(t, chain.Links, 1)
}
