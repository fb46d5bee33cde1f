package util

import (
	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
)

// Sleep parks its chain for Seconds the first time it is processed, then
// reports DONE on the next call, grounded on LLIOSleep.
type Sleep struct {
	iopipe.Base
	Seconds float32
	slept   bool
}

// NewSleep returns a Sleep pipe parking its chain for seconds.
func NewSleep(seconds float32) *Sleep {
	return &Sleep{Seconds: seconds}
}

// Process implements iopipe.Pipe.
func (s *Sleep) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if !s.slept {
		s.slept = true
		pump.SleepChain(s.Seconds)
		return iopipe.BREAK
	}
	return iopipe.DONE
}
