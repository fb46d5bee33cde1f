package iopipe

import "github.com/llio/llio/buffer"

// Pipe is the abstract unit of stream processing: a single stage in a
// Chain. A pump calls Process repeatedly, handing it the segment of the
// chain's shared buffer addressed by channels, until the pipe reports a
// status that ends the conversation (an error, or a success code with
// special scheduling meaning).
type Pipe interface {
	// Process consumes and/or produces data on buf within channels,
	// reporting eos (end-of-stream) if it has nothing further to produce.
	// ctx carries free-form chain state and pump is the scheduler-facing
	// handle the pipe uses to change its own scheduling (sleep, lock,
	// register poll interest, spawn a new chain).
	Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *Context, pump Pump) Status

	// HandleError is given the chance to recover from a Status returned by
	// Process (its own or a downstream pipe's, depending on chain wiring)
	// before the pump tears the chain down. Returning OK resumes normal
	// processing; any other success status or EXPIRED stops the recovery
	// walk without recovering, and returning an error (often the same one
	// unchanged) propagates the failure to the pipe before it.
	HandleError(status Status, pump Pump) Status

	// IsValid reports whether the pipe is still usable. A pipe that has
	// detected it can never make progress again (eg. a socket pipe whose
	// fd was closed out from under it) returns false so the pump can drop
	// its chain without calling Process again.
	IsValid() bool
}

// Base is embedded by concrete pipes to pick up the common, rarely
// overridden parts of the Pipe contract: HandleError that declines to
// handle anything (the error passes through unchanged, matching the base
// LLIOPipe::handleError behavior) and an IsValid that is always true.
type Base struct{}

// HandleError declines to handle status, returning it unchanged.
func (Base) HandleError(status Status, pump Pump) Status { return status }

// IsValid always reports true; override it in pipes that can detect their
// own permanent failure.
func (Base) IsValid() bool { return true }
