package pump

import (
	"time"

	"github.com/llio/llio/iopipe"
	"golang.org/x/sys/unix"
)

// Tick runs one scheduling cycle: pending chains are promoted to running,
// released locks are cleared, the poll set is rebuilt if needed, readiness
// is checked, and every eligible running chain gets one pass through
// processChain. It is the Go analogue of LLPumpIO::pump(poll_timeout).
func (p *Pump) Tick() {
	p.mu.Lock()
	if state(p.state.Load()) == statePausing {
		p.state.Store(int32(statePaused))
	}
	if state(p.state.Load()) == statePaused {
		p.mu.Unlock()
		return
	}

	if len(p.pending) > 0 {
		p.running = append(p.running, p.pending...)
		p.pending = nil
	}

	if len(p.clearLocks) > 0 {
		for _, chain := range p.running {
			if chain.Lock != 0 && p.clearLocks[chain.Lock] {
				chain.Lock = 0
			}
		}
		p.clearLocks = make(map[int32]bool)
	}
	p.mu.Unlock()

	if p.rebuild {
		p.rebuildPollset()
		p.rebuild = false
	}

	signaled := p.poll(p.Options.PollTimeout)

	now := time.Now()
	i := 0
	for i < len(p.running) {
		chain := p.running[i]

		if !chain.Deadline.IsZero() && now.After(chain.Deadline) {
			if p.handleChainError(chain, iopipe.EXPIRED) {
				if !chain.Deadline.IsZero() && now.After(chain.Deadline) {
					setChainTimeout(chain, float32(p.Options.DefaultTimeout.Seconds()))
				}
			} else {
				p.removeRunning(i)
				continue
			}
		} else if chainInvalid(chain) {
			p.removeRunning(i)
			p.rebuild = true
			continue
		}

		if chain.Locked() {
			i++
			continue
		}

		if chain.Sleeping() && now.Before(chain.WakeAt) {
			i++
			continue
		}
		chain.WakeAt = time.Time{}

		process := true
		if len(chain.Descriptors) > 0 {
			res := signaled[chain]
			if res.errored {
				if !p.handleChainError(chain, res.err) {
					chain.Head = len(chain.Links)
				}
				process = false
			} else {
				process = res.ready
			}
		}

		if process {
			p.current = chain
			p.processChain(chain)
			p.current = nil
		}

		if chain.Done() {
			p.removeRunning(i)
			p.rebuild = true
			continue
		}
		i++
	}
}

func (p *Pump) removeRunning(i int) {
	p.running = append(p.running[:i], p.running[i+1:]...)
}

// chainInvalid reports whether chain should be torn down immediately,
// without giving its pipes a chance to handle an error, because it carries
// an outbound request and one of its pipes has detected it can never make
// progress again. Grounded on LLPumpIO::isChainExpired, generalized from
// its curl-specific mHasCurlRequest gate to any outbound-request-bearing
// chain.
func chainInvalid(chain *iopipe.Chain) bool {
	if !chain.HasOutboundRequest {
		return false
	}
	for _, link := range chain.Links {
		if !link.Pipe.IsValid() {
			return true
		}
	}
	return false
}

// pollResult is what one Tick's poll(2) call found out about a chain: it is
// either ready to process, errored (with the status its error should be
// reported to the chain as), or neither (still waiting).
type pollResult struct {
	ready   bool
	errored bool
	err     iopipe.Status
}

// pollChainError is the set of revents that mean a descriptor can never
// usefully signal readiness again, grounded on llpumpio.cpp's
// POLL_CHAIN_ERROR (APR_POLLHUP | APR_POLLNVAL | APR_POLLERR).
const pollChainError = unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

// poll checks every registered descriptor across running chains and
// reports, per chain, whether it became ready or one of its descriptors
// signalled an unrecoverable condition. A hangup translates to
// LOST_CONNECTION, any other error bit to ERROR — mirroring the original's
// "if HUP was one of them, pass that as the error even though there may be
// more" rule. Only the first descriptor to report trouble for a chain is
// kept; later ones are picked up on a following tick.
func (p *Pump) poll(timeout time.Duration) map[*iopipe.Chain]pollResult {
	results := make(map[*iopipe.Chain]pollResult)
	if len(p.pollset) == 0 {
		return results
	}

	fds := make([]unix.PollFd, len(p.pollset))
	for i, e := range p.pollset {
		var events int16
		if e.desc.Readable {
			events |= unix.POLLIN
		}
		if e.desc.Writable {
			events |= unix.POLLOUT
		}
		fds[i] = unix.PollFd{Fd: int32(e.desc.Fd), Events: events}
	}

	timeoutMs := int(timeout / time.Millisecond)
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil || n == 0 {
		return results
	}

	for i, fd := range fds {
		if fd.Revents == 0 {
			continue
		}
		chain := p.pollset[i].chain
		if res := results[chain]; res.errored {
			continue
		}

		if fd.Revents&pollChainError != 0 {
			status := iopipe.ERROR
			if fd.Revents&unix.POLLHUP != 0 {
				status = iopipe.LOST_CONNECTION
			}
			results[chain] = pollResult{errored: true, err: status}
			continue
		}
		results[chain] = pollResult{ready: true}
	}
	return results
}

func (p *Pump) rebuildPollset() {
	var pollset []pollEntry
	for _, chain := range p.running {
		for pipe, desc := range chain.Descriptors {
			pollset = append(pollset, pollEntry{chain: chain, pipe: pipe, desc: *desc})
		}
	}
	p.pollset = pollset
}

// Callback runs every response chain queued by Respond since the last call,
// giving each pipe exactly one pass, then drops the queue.
func (p *Pump) Callback() {
	p.mu.Lock()
	callbacks := p.pendingCallbacks
	p.pendingCallbacks = nil
	p.mu.Unlock()

	for _, chain := range callbacks {
		chain.EOS = true
		p.current = chain
		p.processChain(chain)
		p.current = nil
	}
}
