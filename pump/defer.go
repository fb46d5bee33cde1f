package pump

import (
	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
)

// deferredExpiryPadding is added to the sleep period when building the
// defer chain's own timeout, giving the deferred chain's AddChain pipe
// room to run even under scheduling jitter, mirroring
// LLDeferredChain::addToPump's "in_seconds + 10.0f" padding.
const deferredExpiryPadding = 10.0

// sleepThenAdd is the two-stage pipe LLDeferredChain::addToPump builds on
// the fly: it sleeps for Seconds, then on its next Process call adds Chain
// to the pump and reports DONE.
type sleepThenAdd struct {
	iopipe.Base
	Seconds float32
	Chain   *iopipe.Chain
	Timeout float32
	slept   bool
}

func (s *sleepThenAdd) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if !s.slept {
		s.slept = true
		pump.SleepChain(s.Seconds)
		return iopipe.BREAK
	}
	pump.AddChain(s.Chain, s.Timeout)
	return iopipe.DONE
}

// DeferChain schedules chain to be added to the pump after a delay,
// grounded on LLDeferredChain::addToPump: a short-lived sleep chain is
// added now, and once its sleep elapses it adds the real chain in turn.
func (p *Pump) DeferChain(chain *iopipe.Chain, inSeconds float32, chainTimeout float32) {
	sleeper := &sleepThenAdd{Seconds: inSeconds, Chain: chain, Timeout: chainTimeout}
	sleepChain := iopipe.NewChain([]iopipe.Pipe{sleeper})
	p.AddChain(sleepChain, inSeconds+deferredExpiryPadding)
}
