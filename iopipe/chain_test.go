package iopipe

import (
	"testing"

	"github.com/llio/llio/buffer"
	"github.com/stretchr/testify/require"
)

type stubPipe struct {
	Base
	calls int
}

func (p *stubPipe) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *Context, pump Pump) Status {
	p.calls++
	return OK
}

func TestNewChainAssignsConsumerChannels(t *testing.T) {
	a, b := &stubPipe{}, &stubPipe{}
	chain := NewChain([]Pipe{a, b})

	require.Len(t, chain.Links, 2)
	require.Equal(t, chain.Links[0].Channels.Out(), chain.Links[1].Channels.In())
	require.False(t, chain.Done())
}

func TestChainHeadAdvancesToDone(t *testing.T) {
	chain := NewChain([]Pipe{&stubPipe{}})
	chain.Head = len(chain.Links)
	require.True(t, chain.Done())
}

func TestSetConditionalAddsAndClears(t *testing.T) {
	chain := NewChain([]Pipe{&stubPipe{}})
	p := chain.Links[0].Pipe

	chain.SetConditional(p, &PollDesc{Fd: 3, Readable: true})
	require.Contains(t, chain.Descriptors, p)

	chain.SetConditional(p, nil)
	require.NotContains(t, chain.Descriptors, p)
}

func TestContextGetSet(t *testing.T) {
	ctx := NewContext()
	_, ok := ctx.Get("missing")
	require.False(t, ok)

	ctx.Set("method", "echo")
	v, ok := ctx.Get("method")
	require.True(t, ok)
	require.Equal(t, "echo", v)
}

func TestStatusStrings(t *testing.T) {
	require.Equal(t, "OK", OK.String())
	require.Equal(t, "LOST_CONNECTION", LOST_CONNECTION.String())
	require.True(t, ERROR.IsError())
	require.False(t, DONE.IsError())
	require.True(t, NEED_PROCESS.IsSuccess())
}
