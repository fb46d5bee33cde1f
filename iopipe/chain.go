package iopipe

import (
	"time"

	"github.com/llio/llio/buffer"
)

// Link associates a single pipe with the channel pair it reads its input
// from and writes its output to, grounded on LLPumpIO::LLLinkInfo.
type Link struct {
	Pipe     Pipe
	Channels buffer.Channels
}

// Chain is the scheduling state the pump keeps for one running chain of
// pipes: their links, the shared buffer they read and write, the free-form
// context they pass between themselves, and everything the pump needs to
// decide when to call Process next. It is the Go analogue of LLPumpIO's
// internal LLChainInfo.
type Chain struct {
	Links []Link
	Buf   *buffer.Array
	Ctx   *Context

	// Head indexes the first link still willing to be called; equal to
	// len(Links) once the chain is fully drained.
	Head int

	// EOS is set once some pipe has reported end-of-stream; it is sticky
	// for the life of the chain.
	EOS bool

	// Lock is non-zero while some pipe holds the chain open via Pump's
	// SetLock, preventing Process re-entry; the deadline still applies.
	Lock int32

	// Deadline is the absolute time the chain expires and is torn down
	// unless a pipe recovers from EXPIRED; the zero Time means never.
	Deadline time.Time

	// WakeAt is the absolute time a sleeping chain becomes eligible for
	// processing again; the zero Time means not sleeping.
	WakeAt time.Time

	// Descriptors holds the most recently registered poll condition for
	// each pipe in the chain that has called Pump.SetConditional. While the
	// map is non-empty the whole chain is processed only on a tick where
	// one of these descriptors is ready.
	Descriptors map[Pipe]*PollDesc

	// HasOutboundRequest marks a chain as carrying a pipe whose validity
	// can change out from under the pump (eg. an outbound socket closed
	// by another goroutine), opting it into the per-tick IsValid recheck,
	// mirroring LLPumpIO::addChain's has_curl_request parameter.
	HasOutboundRequest bool
}

// NewChain builds a Chain for links sharing a fresh buffer and context,
// mirroring LLPumpIO::addChain's simple chain_t overload: the first link
// gets a fresh channel pair and each later link gets the consumer pair of
// the link before it, so each pipe reads what the previous one wrote.
func NewChain(pipes []Pipe) *Chain {
	links := make([]Link, len(pipes))
	buf := buffer.NewArray()
	channels := buf.NextChannel()
	for i, p := range pipes {
		links[i] = Link{Pipe: p, Channels: channels}
		channels = buffer.MakeChannelConsumer(channels)
	}
	return &Chain{
		Links: links,
		Buf:   buf,
		Ctx:   NewContext(),
	}
}

// NewChainOn builds a Chain for pipes that share an existing buffer,
// starting from startChannels rather than allocating a fresh channel pair,
// mirroring the chain LLHTTPResponder::process_impl assembles for a routed
// request: the sub-chain's first link reads the same channels the
// responder itself was handed, and every later link consumes the previous
// one's output exactly as NewChain does.
func NewChainOn(buf *buffer.Array, startChannels buffer.Channels, pipes []Pipe) *Chain {
	links := make([]Link, len(pipes))
	channels := startChannels
	for i, p := range pipes {
		links[i] = Link{Pipe: p, Channels: channels}
		channels = buffer.MakeChannelConsumer(channels)
	}
	return &Chain{
		Links: links,
		Buf:   buf,
		Ctx:   NewContext(),
	}
}

// Done reports whether the chain has been fully consumed: its head has
// advanced past every link.
func (c *Chain) Done() bool {
	return c.Head >= len(c.Links)
}

// Sleeping reports whether the chain is parked until WakeAt.
func (c *Chain) Sleeping() bool {
	return !c.WakeAt.IsZero()
}

// Locked reports whether some pipe currently holds the chain open.
func (c *Chain) Locked() bool {
	return c.Lock != 0
}

// SetConditional records or clears desc as the poll condition for pipe p.
func (c *Chain) SetConditional(p Pipe, desc *PollDesc) {
	if c.Descriptors == nil {
		c.Descriptors = make(map[Pipe]*PollDesc)
	}
	if desc == nil {
		delete(c.Descriptors, p)
		return
	}
	c.Descriptors[p] = desc
}
