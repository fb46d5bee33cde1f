// Package util provides small single-purpose pipes used to glue chains
// together: flushing a stream closed, sleeping a chain, deferring another
// chain's start, and remapping a segment's channel.
package util

import (
	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
)

// Flush marks its channel's output as ended the next time it is processed,
// and otherwise does nothing. Responder puts one at the head of each routed
// sub-chain so that every pipe after it runs with eos set.
type Flush struct {
	iopipe.Base
}

// Process implements iopipe.Pipe.
func (Flush) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	*eos = true
	return iopipe.OK
}
