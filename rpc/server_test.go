package rpc

import (
	"testing"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
	"github.com/stretchr/testify/require"
)

type stubPump struct {
	locks     int32
	cleared   []int32
	responded []*iopipe.Chain
	current   *iopipe.Chain
}

func (p *stubPump) AddChain(chain *iopipe.Chain, timeoutSeconds float32) {}
func (p *stubPump) SetConditional(pipe iopipe.Pipe, desc *iopipe.PollDesc) {}
func (p *stubPump) SetLock() int32 {
	p.locks++
	return p.locks
}
func (p *stubPump) ClearLock(key int32) { p.cleared = append(p.cleared, key) }
func (p *stubPump) SleepChain(seconds float32) {}
func (p *stubPump) AdjustTimeoutSeconds(delta float32) {}
func (p *stubPump) Respond(chain *iopipe.Chain, buf *buffer.Array, ctx *iopipe.Context) {
	p.responded = append(p.responded, chain)
}
func (p *stubPump) CurrentChain() *iopipe.Chain { return p.current }

func writeRequest(t *testing.T, buf *buffer.Array, channel int32, method string, params sd.Value) {
	t.Helper()
	body := sd.ToNotation(sd.Map{"method": method, "parameter": params})
	buf.Append(channel, body)
}

func TestServerInlineMethodRespondsImmediately(t *testing.T) {
	s := NewServer()
	s.Handle("echo", func(params sd.Value, channels buffer.Channels, buf *buffer.Array) Status {
		BuildResponse(channels, buf, params)
		return Done
	})

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	writeRequest(t, buf, channels.In(), "echo", "hi")

	eos := true
	status := s.Process(channels, buf, &eos, iopipe.NewContext(), &stubPump{})
	require.Equal(t, iopipe.DONE, status)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)

	value, _, err := sd.FromNotation(out)
	require.NoError(t, err)
	m := value.(sd.Map)
	require.Equal(t, "hi", m["response"])
}

func TestServerUnknownMethodFaults(t *testing.T) {
	s := NewServer()

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	writeRequest(t, buf, channels.In(), "missing", "x")

	eos := true
	status := s.Process(channels, buf, &eos, iopipe.NewContext(), &stubPump{})
	require.Equal(t, iopipe.DONE, status)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)

	value, _, err := sd.FromNotation(out)
	require.NoError(t, err)
	m := value.(sd.Map)
	fault := m["fault"].(sd.Map)
	require.Equal(t, int64(FaultMethodNotFound), fault["code"])
}

func TestServerDeferredMethodLocksAndClears(t *testing.T) {
	s := NewServer()
	var releasedChannels buffer.Channels
	var releasedBuf *buffer.Array
	s.Handle("slow", func(params sd.Value, channels buffer.Channels, buf *buffer.Array) Status {
		releasedChannels, releasedBuf = channels, buf
		return Deferred
	})
	s.DeferredResponse = func(channels buffer.Channels, buf *buffer.Array) Status {
		BuildResponse(channels, buf, "late")
		return Done
	}

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	writeRequest(t, buf, channels.In(), "slow", nil)

	eos := true
	pump := &stubPump{}
	status := s.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.BREAK, status)
	require.Equal(t, int32(1), pump.locks)

	s.ClearLock(pump)
	require.Equal(t, []int32{1}, pump.cleared)

	status = s.Process(releasedChannels, releasedBuf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.DONE, status)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)
	value, _, err := sd.FromNotation(out)
	require.NoError(t, err)
	require.Equal(t, "late", value.(sd.Map)["response"])
}

func TestServerCallbackMethodRespondsThroughPump(t *testing.T) {
	s := NewServer()
	s.HandleCallback("deferredEcho", func(params sd.Value, channels buffer.Channels, buf *buffer.Array) Status {
		BuildResponse(channels, buf, params)
		return Done
	})

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	writeRequest(t, buf, channels.In(), "deferredEcho", "cb")

	eos := true
	pump := &stubPump{}
	status := s.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.BREAK, status)
	require.Len(t, pump.responded, 1)
	require.Equal(t, int32(1), pump.locks)

	status = s.Process(channels, buf, &eos, iopipe.NewContext(), pump)
	require.Equal(t, iopipe.DONE, status)
	require.Equal(t, []int32{1}, pump.cleared)

	n := buf.CountAfter(channels.Out(), nil)
	out := make([]byte, n)
	buf.ReadAfter(channels.Out(), nil, out)
	value, _, err := sd.FromNotation(out)
	require.NoError(t, err)
	require.Equal(t, "cb", value.(sd.Map)["response"])
}

func TestCloneSharesTablesNotState(t *testing.T) {
	template := NewServer()
	template.Handle("ping", func(params sd.Value, channels buffer.Channels, buf *buffer.Array) Status {
		BuildResponse(channels, buf, "pong")
		return Done
	})

	clone := template.Clone()
	require.NotSame(t, template, clone)

	buf := buffer.NewArray()
	channels := buf.NextChannel()
	writeRequest(t, buf, channels.In(), "ping", nil)

	eos := true
	status := clone.Process(channels, buf, &eos, iopipe.NewContext(), &stubPump{})
	require.Equal(t, iopipe.DONE, status)
}
