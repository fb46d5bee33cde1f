package pump

import "github.com/llio/llio/iopipe"

// processChain gives every pipe from chain.Head onward one call to
// Process, following the same status-driven control flow as
// LLPumpIO::processChain: STOP retires the chain, DONE advances past the
// reporting pipe and marks end-of-stream, BREAK halts this pass without
// retiring the chain, NEED_PROCESS pins the head to the requesting pipe for
// the next tick, and any error status unwinds through handleChainError.
func (p *Pump) processChain(chain *iopipe.Chain) {
	end := len(chain.Links)
	it := chain.Head
	if it >= end {
		return
	}

	needProcessSignaled := false
	keepGoing := true

	for {
		link := chain.Links[it]
		status := link.Pipe.Process(link.Channels, chain.Buf, &chain.EOS, chain.Ctx, p)

		switch status {
		case iopipe.OK:
			// no-op, keep walking forward
		case iopipe.STOP:
			chain.Head = end
			keepGoing = false
		case iopipe.DONE:
			chain.Head = it + 1
			chain.EOS = true
		case iopipe.BREAK:
			keepGoing = false
		case iopipe.NEED_PROCESS:
			if !needProcessSignaled {
				needProcessSignaled = true
				chain.Head = it
			}
		default:
			if status.IsError() {
				keepGoing = false
				chain.Head = it
				if !p.handleChainError(chain, status) {
					chain.Head = end
				}
			}
		}

		if !keepGoing {
			break
		}
		it++
		if it >= end {
			break
		}
	}
}

// handleChainError walks chain backwards from its head, giving each pipe's
// HandleError a chance to recover error. It stops as soon as a pipe
// recovers by returning OK (leaving chain.Head at the pipe after the one
// that recovered) or a pipe returns any other success status or EXPIRED,
// which ends the walk without recovering.
func (p *Pump) handleChainError(chain *iopipe.Chain, err iopipe.Status) bool {
	start := chain.Head
	if start >= len(chain.Links) {
		start = len(chain.Links) - 1
	}
	if start < 0 {
		return false
	}

	handled := false
	keepGoing := true
	for i := start; keepGoing && !handled && i >= 0; i-- {
		link := chain.Links[i]
		err = link.Pipe.HandleError(err, p)
		switch err {
		case iopipe.OK:
			handled = true
			chain.Head = i + 1
		case iopipe.STOP, iopipe.DONE, iopipe.BREAK, iopipe.NEED_PROCESS:
			keepGoing = false
		case iopipe.EXPIRED:
			keepGoing = false
		default:
			if err.IsSuccess() {
				keepGoing = false
			}
		}
	}
	return handled
}
