package util

import (
	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
)

// AddChain adds Chain to the pump the first time it is processed, then
// reports DONE, grounded on LLIOAddChain.
type AddChain struct {
	iopipe.Base
	Chain   *iopipe.Chain
	Timeout float32
}

// NewAddChain returns an AddChain pipe that schedules chain with the given
// timeout, in seconds from when it is added, once run.
func NewAddChain(chain *iopipe.Chain, timeout float32) *AddChain {
	return &AddChain{Chain: chain, Timeout: timeout}
}

// Process implements iopipe.Pipe.
func (a *AddChain) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	pump.AddChain(a.Chain, a.Timeout)
	return iopipe.DONE
}
