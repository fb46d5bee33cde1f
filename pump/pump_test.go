package pump

import (
	"testing"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/stretchr/testify/require"
)

// scriptedPipe returns a fixed sequence of statuses, one per call to
// Process, repeating the last entry once exhausted.
type scriptedPipe struct {
	iopipe.Base
	statuses []iopipe.Status
	calls    int
}

func (s *scriptedPipe) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	i := s.calls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.calls++
	return s.statuses[i]
}

type recoveringPipe struct {
	iopipe.Base
	handleCalls int
}

func (p *recoveringPipe) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	return iopipe.OK
}

func (p *recoveringPipe) HandleError(status iopipe.Status, pump iopipe.Pump) iopipe.Status {
	p.handleCalls++
	return iopipe.OK
}

func TestTickRunsChainToCompletion(t *testing.T) {
	a := &scriptedPipe{statuses: []iopipe.Status{iopipe.DONE}}
	b := &scriptedPipe{statuses: []iopipe.Status{iopipe.DONE}}
	chain := iopipe.NewChain([]iopipe.Pipe{a, b})

	p := NewPump()
	p.AddChain(chain, 0)
	p.Tick()

	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)
	require.True(t, chain.Done())
	require.Empty(t, p.running)
}

func TestTickStopHaltsChainWithoutError(t *testing.T) {
	a := &scriptedPipe{statuses: []iopipe.Status{iopipe.STOP}}
	b := &scriptedPipe{statuses: []iopipe.Status{iopipe.DONE}}
	chain := iopipe.NewChain([]iopipe.Pipe{a, b})

	p := NewPump()
	p.AddChain(chain, 0)
	p.Tick()

	require.Equal(t, 1, a.calls)
	require.Equal(t, 0, b.calls)
	require.True(t, chain.Done())
}

func TestErrorUnwindsToHandler(t *testing.T) {
	recov := &recoveringPipe{}
	failing := &scriptedPipe{statuses: []iopipe.Status{iopipe.ERROR}}
	chain := iopipe.NewChain([]iopipe.Pipe{recov, failing})

	p := NewPump()
	p.AddChain(chain, 0)
	p.Tick()

	require.Equal(t, 1, recov.handleCalls)
	require.False(t, chain.Done())
}

func TestNeedProcessPinsHead(t *testing.T) {
	needy := &scriptedPipe{statuses: []iopipe.Status{iopipe.NEED_PROCESS}}
	chain := iopipe.NewChain([]iopipe.Pipe{needy})

	p := NewPump()
	p.AddChain(chain, 0)
	p.Tick()

	require.Equal(t, 0, chain.Head)
	require.False(t, chain.Done())
}

// invalidatablePipe starts out valid and can be flipped to invalid from
// outside the pump, simulating a pipe whose underlying resource (eg. an
// outbound socket) was torn down by another goroutine.
type invalidatablePipe struct {
	iopipe.Base
	valid bool
}

func (p *invalidatablePipe) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	return iopipe.BREAK
}

func (p *invalidatablePipe) IsValid() bool { return p.valid }

func TestTickRemovesInvalidOutboundChain(t *testing.T) {
	pipe := &invalidatablePipe{valid: true}
	chain := iopipe.NewChain([]iopipe.Pipe{pipe})
	chain.HasOutboundRequest = true

	p := NewPump()
	p.AddChain(chain, 0)
	p.Tick()
	require.Contains(t, p.running, chain)

	pipe.valid = false
	p.Tick()
	require.NotContains(t, p.running, chain)
}

func TestTickIgnoresInvalidPipeWithoutOutboundRequestFlag(t *testing.T) {
	pipe := &invalidatablePipe{valid: false}
	chain := iopipe.NewChain([]iopipe.Pipe{pipe})

	p := NewPump()
	p.AddChain(chain, 0)
	p.Tick()
	require.Contains(t, p.running, chain)
}

func TestSetLockHoldsChainUntilCleared(t *testing.T) {
	p := NewPump()
	chain := iopipe.NewChain([]iopipe.Pipe{&scriptedPipe{statuses: []iopipe.Status{iopipe.OK}}})
	p.AddChain(chain, 0)
	p.Tick() // promote pending -> running, process once

	p.current = chain
	key := p.SetLock()
	p.current = nil
	require.NotZero(t, key)
	require.True(t, chain.Locked())

	p.ClearLock(key)
	p.Tick()
	require.False(t, chain.Locked())
}
