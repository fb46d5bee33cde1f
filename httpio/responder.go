package httpio

import (
	"strconv"
	"strings"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
	"github.com/llio/llio/util"
)

// responderState is the Responder's small state machine, grounded on
// LLHTTPResponder::EState.
type responderState int

const (
	stateNothing responderState = iota
	stateReadingHeaders
	stateLookingForEOS
	stateDone
	stateShortCircuit
)

const headerBufferSize = 1024
const defaultSubChainTimeout float32 = 30

var validVerbs = map[string]bool{
	VerbGet: true, VerbPut: true, VerbPost: true, VerbDelete: true, VerbOptions: true,
}

// Responder is the per-connection HTTP/1.0 request parser, the first pipe
// after the socket reader in an httpio server chain. It accumulates header
// lines until it knows the whole request has arrived, then hands off to a
// routed sub-chain built from the matching Node. Grounded on
// LLHTTPResponder.
type Responder struct {
	iopipe.Base

	router     *Router
	remoteHost string
	remotePort int64

	state           responderState
	lastRead        *buffer.Addr
	verb            string
	absPathAndQuery string
	path            string
	query           string
	version         string
	contentLength   int
	headers         sd.Map
}

// NewResponder returns a Responder dispatching against router for a
// connection from remoteHost:remotePort.
func NewResponder(router *Router, remoteHost string, remotePort int64) *Responder {
	return &Responder{router: router, remoteHost: remoteHost, remotePort: remotePort}
}

// Process implements iopipe.Pipe.
func (r *Responder) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	status := iopipe.OK

	if r.state == stateNothing || r.state == stateReadingHeaders {
		status = iopipe.BREAK
		r.state = stateReadingHeaders
		r.parseAvailableHeaders(channels, buf)
	}

	if r.state == stateLookingForEOS {
		if r.contentLength == 0 || buf.CountAfter(channels.In(), r.lastRead) >= r.contentLength {
			r.state = stateDone
		}
	}

	if r.state == stateDone {
		return r.dispatch(channels, buf, ctx, pump)
	}

	if r.state == stateShortCircuit {
		return iopipe.DONE
	}

	return status
}

// parseAvailableHeaders reads as many header lines as are currently
// buffered, stopping (without error) when it runs out of data so the next
// Process call can pick up where this one left off.
func (r *Responder) parseAvailableHeaders(channels buffer.Channels, buf *buffer.Array) {
	line, ok := r.readHeaderLine(channels, buf)
	if !ok {
		return
	}

	readNextLine := false
	parseAll := true

	if r.verb == "" {
		readNextLine = true
		fields := strings.Fields(line)
		if len(fields) == 0 {
			parseAll = false
			r.markBad(channels, buf)
		} else {
			r.verb = fields[0]
			if !validVerbs[r.verb] {
				readNextLine = false
				parseAll = false
				r.markBad(channels, buf)
			} else {
				if len(fields) > 1 {
					r.absPathAndQuery = fields[1]
				}
				if len(fields) > 2 {
					r.version = fields[2]
				}
				if i := strings.IndexByte(r.absPathAndQuery, '?'); i >= 0 {
					r.path, r.query = r.absPathAndQuery[:i], r.absPathAndQuery[i+1:]
				} else {
					r.path = r.absPathAndQuery
				}
				if r.absPathAndQuery != "" && r.version == "" {
					// HTTP/0.9-style simple request: no headers follow.
					parseAll = false
					r.state = stateDone
					r.version = "HTTP/1.0"
				}
			}
		}
	}

	if !parseAll {
		return
	}

	for {
		if readNextLine {
			line, ok = r.readHeaderLine(channels, buf)
			if !ok {
				return
			}
		}
		readNextLine = true

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			r.state = stateLookingForEOS
			return
		}

		name, value, found := strings.Cut(trimmed, ":")
		if !found {
			r.markBad(channels, buf)
			return
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "content-length" {
			if n, err := strconv.Atoi(value); err == nil {
				r.contentLength = n
			}
			continue
		}
		if r.headers == nil {
			r.headers = sd.Map{}
		}
		r.headers[name] = value
	}
}

// readHeaderLine peeks up to headerBufferSize-1 bytes past lastRead,
// returns the first line found (including its trailing newline), and
// rewinds lastRead so the next call resumes right after that line. It
// returns false, without consuming anything, when no newline has arrived
// yet; a read that fills the whole peek window without a newline is
// treated as an oversize line and marks the request bad, grounded on
// LLHTTPResponder::readHeaderLine.
func (r *Responder) readHeaderLine(channels buffer.Channels, buf *buffer.Array) (string, bool) {
	dest := make([]byte, headerBufferSize-1)
	n, last := buf.ReadAfter(channels.In(), r.lastRead, dest)
	if n == 0 {
		return "", false
	}

	idx := indexByte(dest[:n], '\n')
	if idx < 0 {
		if n >= len(dest) {
			r.markBad(channels, buf)
		}
		return "", false
	}

	back := (n - 1) - idx
	if back > 0 {
		r.lastRead = buf.Seek(channels.In(), last, -back)
	} else {
		r.lastRead = last
	}
	return string(dest[:idx+1]), true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// markBad short-circuits the request with a 400 Bad Request, grounded on
// LLHTTPResponder::markBad.
func (r *Responder) markBad(channels buffer.Channels, buf *buffer.Array) {
	r.state = stateShortCircuit
	buf.Append(channels.Out(), []byte("HTTP/1.0 400 Bad Request\r\n\r\n<html>\n"+
		"<title>Bad Request</title>\n<body>\nBad Request.\n</body>\n</html>\n"))
}

// dispatch traverses the router for the parsed path and, on a match,
// builds and schedules the routed sub-chain, grounded on the STATE_DONE
// branch of LLHTTPResponder::process_impl.
func (r *Responder) dispatch(channels buffer.Channels, buf *buffer.Array, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	node, found := r.router.Traverse(r.path)
	if !found {
		r.state = stateShortCircuit
		buf.Append(channels.Out(), []byte("HTTP/1.0 404 Not Found\r\n\r\n<html>\n"+
			"<title>Not Found</title>\n<body>\nNode '"+r.absPathAndQuery+"' not found.\n</body>\n</html>\n"))
		return iopipe.DONE
	}

	requestCtx := iopipe.NewContext()
	requestCtx.Set(contextRequest, sd.Map{
		contextVerb:      r.verb,
		"path":           r.path,
		"query-string":   r.query,
		"remote-host":    r.remoteHost,
		"remote-port":    r.remotePort,
		contextHeaders:   r.headersValue(),
	})

	// Relocate whatever of the body has already arrived from this pipe's
	// own input lane onto its own output lane, so the routed sub-chain
	// below it — which reuses this pipe's channel pair — finds the body
	// where its first consumer link expects it, mirroring the STATE_DONE
	// branch of LLHTTPResponder::process_impl (splitAfter(mLastRead) +
	// LLChangeChannel(in, out)). The request line and headers, which end
	// at lastRead, are erased from the input lane first so only the body
	// is relocated.
	if r.lastRead != nil {
		if idx, ok := buf.SplitAfter(*r.lastRead); ok {
			for i := idx; i >= 0; i-- {
				if seg, ok := buf.GetSegment(i); ok && seg.IsOnChannel(channels.In()) {
					buf.EraseSegment(i)
				}
			}
		}
	}
	buf.ChangeChannel(channels.In(), channels.Out())

	pipes := []iopipe.Pipe{&util.Flush{}}
	if node.Factory != nil {
		if factoryPipes, ok := node.Factory.Build(requestCtx); ok {
			pipes = append(pipes, factoryPipes...)
		} else {
			pipes = append(pipes, newDefaultPipe(node))
		}
	} else {
		pipes = append(pipes, newDefaultPipe(node))
	}
	pipes = append(pipes, NewResponseHeader())

	// Copy every pipe of the parent chain that runs after this Responder,
	// so the response the sub-chain produces still reaches the
	// connection's writer, mirroring
	// LLPumpIO::copyCurrentLinkInfo's use in process_impl.
	if current := pump.CurrentChain(); current != nil {
		afterSelf := false
		for _, link := range current.Links {
			if afterSelf {
				pipes = append(pipes, link.Pipe)
			} else if link.Pipe == iopipe.Pipe(r) {
				afterSelf = true
			}
		}
	}

	subChain := iopipe.NewChainOn(buf, channels, pipes)
	subChain.Ctx = requestCtx
	pump.AddChain(subChain, defaultSubChainTimeout)

	return iopipe.STOP
}

func (r *Responder) headersValue() sd.Map {
	if r.headers == nil {
		return sd.Map{}
	}
	return r.headers
}
