// Package pump implements the single-threaded cooperative scheduler that
// drives chains of iopipe.Pipe stages against a set of OS readiness
// descriptors: the Go analogue of LLPumpIO.
package pump

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// control states, mirroring LLPumpIO::EState.
type state int32

const (
	stateNormal state = iota
	statePausing
	statePaused
)

// Pump manages every running chain of pipes: scheduling calls to Process, rebuilding the readiness set, retiring chains that
// time out, and walking a chain backwards to recover from errors. A Pump
// is driven by repeatedly calling Tick, typically from Run in its own
// goroutine.
type Pump struct {
	*zerolog.Logger

	Options Options // modify before Run

	mu    sync.Mutex
	state atomic.Int32

	pending []*iopipe.Chain
	running []*iopipe.Chain
	current *iopipe.Chain

	nextLock   int32
	clearLocks map[int32]bool

	rebuild bool
	pollset []pollEntry

	pendingCallbacks []*iopipe.Chain

	// KV is a generic, thread-safe key/value store chains can stash
	// scheduler-wide state in (eg. a shared RPC dispatch table).
	KV *xsync.MapOf[string, any]
}

type pollEntry struct {
	chain *iopipe.Chain
	pipe  iopipe.Pipe
	desc  iopipe.PollDesc
}

// NewPump returns a Pump configured with DefaultOptions; modify Pump.Options
// before the first call to Run or Tick.
func NewPump() *Pump {
	p := &Pump{}
	p.Options = DefaultOptions
	p.apply(&p.Options)
	p.clearLocks = make(map[int32]bool)
	p.KV = xsync.NewMapOf[string, any]()
	return p
}

// AddChain schedules chain for processing starting on the next Tick,
// setting its deadline timeoutSeconds from now (0 disables the timeout).
// It implements iopipe.Pump.
func (p *Pump) AddChain(chain *iopipe.Chain, timeoutSeconds float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	setChainTimeout(chain, timeoutSeconds)
	p.pending = append(p.pending, chain)
}

// SetConditional implements iopipe.Pump.
func (p *Pump) SetConditional(pipe iopipe.Pipe, desc *iopipe.PollDesc) {
	if p.current == nil {
		return
	}
	p.current.SetConditional(pipe, desc)
	p.rebuild = true
}

// SetLock implements iopipe.Pump. Should only be called while a chain is
// being processed (ie. from within Process or HandleError).
func (p *Pump) SetLock() int32 {
	if p.current == nil {
		return 0
	}
	p.nextLock++
	if p.nextLock <= 0 {
		p.nextLock = 1
	}
	p.current.Lock = p.nextLock
	return p.nextLock
}

// ClearLock implements iopipe.Pump.
func (p *Pump) ClearLock(key int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocks[key] = true
}

// SleepChain implements iopipe.Pump: it locks the current chain and
// schedules the lock's release after the given duration.
func (p *Pump) SleepChain(seconds float32) {
	if seconds <= 0 {
		return
	}
	key := p.SetLock()
	if key == 0 {
		return
	}
	time.AfterFunc(time.Duration(seconds*float32(time.Second)), func() {
		p.ClearLock(key)
	})
}

// AdjustTimeoutSeconds implements iopipe.Pump.
func (p *Pump) AdjustTimeoutSeconds(delta float32) {
	if p.current == nil || p.current.Deadline.IsZero() {
		return
	}
	p.current.Deadline = p.current.Deadline.Add(time.Duration(delta * float32(time.Second)))
}

// Respond implements iopipe.Pump: it schedules a one-shot chain that will
// be run during the next Callback call and then dropped.
func (p *Pump) Respond(chain *iopipe.Chain, buf *buffer.Array, ctx *iopipe.Context) {
	chain.Buf = buf
	chain.Ctx = ctx
	p.mu.Lock()
	p.pendingCallbacks = append(p.pendingCallbacks, chain)
	p.mu.Unlock()
}

// CurrentChain implements iopipe.Pump.
func (p *Pump) CurrentChain() *iopipe.Chain {
	return p.current
}

// Pause asks the pump to stop processing chains after the current Tick
// finishes draining in-flight work.
func (p *Pump) Pause() { p.state.Store(int32(statePausing)) }

// Resume clears a prior Pause.
func (p *Pump) Resume() { p.state.Store(int32(stateNormal)) }

func setChainTimeout(chain *iopipe.Chain, timeoutSeconds float32) {
	if timeoutSeconds > 0 {
		chain.Deadline = time.Now().Add(time.Duration(timeoutSeconds * float32(time.Second)))
	} else {
		chain.Deadline = time.Time{}
	}
}

// Run drives the pump with repeated calls to Tick until ctx is canceled.
func (p *Pump) Run(ctx context.Context) {
	interval := p.Options.PollTimeout
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
			p.Callback()
		}
	}
}
