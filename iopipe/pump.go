package iopipe

import "github.com/llio/llio/buffer"

// PollDesc is an OS-level readiness descriptor a pipe registers interest in:
// a socket pipe waiting on connect() or a server socket waiting to accept(),
// for instance. The pump owns the actual poll(2)/kqueue/epoll set; a pipe
// only ever sees this small descriptor.
type PollDesc struct {
	// Fd is the OS file descriptor to poll.
	Fd int

	// Readable/Writable request level-triggered readiness on the
	// corresponding direction.
	Readable bool
	Writable bool
}

// Pump is the scheduler-facing surface a Pipe's Process/HandleError methods
// are handed back, so a pipe can ask the pump to change how its chain is
// driven without either package importing the other. The concrete
// implementation lives in package pump; this interface exists purely to
// break the import cycle (pump.Pump needs iopipe.Pipe/Chain/Status, so
// iopipe cannot import pump back).
type Pump interface {
	// AddChain schedules a new chain for processing, giving it a deadline
	// timeoutSeconds from now (0 means no deadline); activity on the chain
	// does not push the deadline back.
	AddChain(chain *Chain, timeoutSeconds float32)

	// SetConditional registers desc as the readiness condition gating
	// further calls to p.Process: the pump will not call Process again
	// until desc's descriptor is ready, or desc is nil (always ready).
	SetConditional(p Pipe, desc *PollDesc)

	// SetLock obtains a lock key that keeps the pump from calling Process
	// on the current chain until the matching ClearLock call, used by
	// pipes that hand the chain off to another thread (eg. a deferred RPC
	// response). A locked chain still expires at its deadline.
	SetLock() int32

	// ClearLock releases a lock obtained with SetLock.
	ClearLock(key int32)

	// SleepChain parks the current chain for the given number of seconds
	// before it is next considered for processing.
	SleepChain(seconds float32)

	// AdjustTimeoutSeconds moves the current chain's deadline later or
	// earlier by delta seconds; a chain with no deadline is left as is.
	AdjustTimeoutSeconds(delta float32)

	// Respond queues chain, with buf/ctx as its buffer and context, to be
	// run once from its head with eos set during the next Callback and then
	// dropped; a deferred response uses it to deliver its result.
	Respond(chain *Chain, buf *buffer.Array, ctx *Context)

	// CurrentChain returns the chain whose pipe is presently being
	// processed, so a pipe can inspect (never mutate) the links that
	// follow it, the Go analogue of LLPumpIO::copyCurrentLinkInfo used by
	// LLHTTPResponder to copy the tail of its own chain onto the routed
	// sub-chain it builds.
	CurrentChain() *Chain
}
