package httpio

import (
	"sync"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
)

// pipeState is the default HTTP-LLSD pipe's small state machine, grounded
// on LLHTTPPipe's State enum (STATE_INVOKE/STATE_DELAYED/STATE_LOCKED/
// STATE_GOOD_RESULT/STATE_STATUS_RESULT/STATE_EXTENDED_RESULT).
type pipeState int

const (
	pipeInvoke pipeState = iota
	pipeDelayed
	pipeLocked
	pipeGoodResult
	pipeStatusResult
	pipeExtendedResult
)

const contentTypeHeader = "Content-Type"
const notationContentType = "application/llsd+notation"

// defaultPipe is the fallback protocol handler a Responder builds into a
// routed sub-chain when the matched Node has no NodeFactory of its own: it
// decodes the request body, dispatches to the Node's verb handler, and
// waits (possibly across a deferred response) for a result to serialize
// back onto the chain's output channel. Grounded on LLHTTPPipe.
type defaultPipe struct {
	iopipe.Base

	node *Node

	mu            sync.Mutex
	state         pipeState
	chainLock     int32
	lockedPump    iopipe.Pump
	statusCode    int
	statusMessage string
	goodResult    interface{}
	headers       headerPairs
}

// newDefaultPipe returns the default protocol handler bound to node.
func newDefaultPipe(node *Node) *defaultPipe {
	return &defaultPipe{node: node}
}

// Process implements iopipe.Pipe.
func (p *defaultPipe) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if !*eos {
		return iopipe.BREAK
	}
	if pump == nil || buf == nil {
		return iopipe.PRECONDITION_NOT_MET
	}

	p.mu.Lock()
	invoking := p.state == pipeInvoke
	if invoking {
		p.state = pipeDelayed
	}
	p.mu.Unlock()

	if invoking {
		p.invoke(channels, buf, ctx)
	}

	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case pipeDelayed:
		p.lockChain(pump)
		return iopipe.BREAK
	case pipeLocked:
		return iopipe.ERROR
	case pipeGoodResult:
		return p.emit(channels, buf, ctx, 200, "OK")
	case pipeStatusResult:
		return p.emit(channels, buf, ctx, p.statusCode, p.statusMessage)
	case pipeExtendedResult:
		return p.emit(channels, buf, ctx, p.statusCode, p.statusMessage)
	default:
		return iopipe.ERROR
	}
}

// invoke decodes the request body (for PUT/POST) and dispatches to the
// node's verb handler, mirroring the STATE_INVOKE branch of
// LLHTTPPipe::process_impl.
func (p *defaultPipe) invoke(channels buffer.Channels, buf *buffer.Array, ctx *iopipe.Context) {
	response := &Response{pipe: p}
	verb, _, _, _, _, _ := requestInfo(ctx)

	var params interface{}
	if verb == VerbPut || verb == VerbPost {
		params = decodeBody(channels, buf, p.node.ContentType)
	}

	switch verb {
	case VerbGet:
		dispatch(p.node.Get, response, ctx, nil)
	case VerbPut:
		dispatch(p.node.Put, response, ctx, params)
	case VerbPost:
		dispatch(p.node.Post, response, ctx, params)
	case VerbDelete:
		dispatch(p.node.Delete, response, ctx, nil)
	case VerbOptions:
		dispatch(p.node.Options, response, ctx, nil)
	default:
		response.MethodNotAllowed()
	}
}

func dispatch(h Handler, resp *Response, ctx *iopipe.Context, params interface{}) {
	if h == nil {
		resp.MethodNotAllowed()
		return
	}
	h(resp, ctx, params)
}

func decodeBody(channels buffer.Channels, buf *buffer.Array, ct ContentType) interface{} {
	n := buf.CountAfter(channels.In(), nil)
	if n == 0 {
		return nil
	}
	body := make([]byte, n)
	buf.ReadAfter(channels.In(), nil, body)

	if ct == ContentTypeText {
		return string(body)
	}
	value, _, err := sd.FromNotation(body)
	if err != nil {
		return nil
	}
	return value
}

func (p *defaultPipe) lockChain(pump iopipe.Pump) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainLock == 0 {
		p.chainLock = pump.SetLock()
		p.lockedPump = pump
	}
}

func (p *defaultPipe) unlockChain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedPump != nil {
		p.lockedPump.ClearLock(p.chainLock)
		p.chainLock = 0
		p.lockedPump = nil
	}
}

// onGoodResult implements Response.Result.
func (p *defaultPipe) onGoodResult(value interface{}, headers headerPairs) {
	p.mu.Lock()
	p.state = pipeGoodResult
	p.goodResult = value
	p.headers = headers
	p.mu.Unlock()
	p.unlockChain()
}

// onStatusResult implements Response.Status.
func (p *defaultPipe) onStatusResult(code int, message string) {
	p.mu.Lock()
	p.state = pipeStatusResult
	p.statusCode = code
	p.statusMessage = message
	p.mu.Unlock()
	p.unlockChain()
}

// onExtendedResult implements Response.ExtendedResult.
func (p *defaultPipe) onExtendedResult(code int, message string, value interface{}, headers headerPairs) {
	p.mu.Lock()
	p.state = pipeExtendedResult
	p.statusCode = code
	p.statusMessage = message
	p.goodResult = value
	p.headers = headers
	p.mu.Unlock()
	p.unlockChain()
}

// emit serializes the resolved result onto channels.Out and records the
// response status/headers into ctx for the response header writer pipe
// further down the chain to pick up.
func (p *defaultPipe) emit(channels buffer.Channels, buf *buffer.Array, ctx *iopipe.Context, code int, message string) iopipe.Status {
	p.mu.Lock()
	result := p.goodResult
	headers := p.headers
	p.mu.Unlock()

	var body []byte
	if result != nil {
		body = sd.ToNotation(result)
		headers.add(contentTypeHeader, notationContentType)
	}
	if len(body) > 0 {
		buf.Append(channels.Out(), body)
	}
	setResponseInfo(ctx, code, message, headers)
	return iopipe.DONE
}

func setResponseInfo(ctx *iopipe.Context, code int, message string, headers headerPairs) {
	pairs := make(sd.Array, len(headers.names))
	for i := range headers.names {
		pairs[i] = sd.Array{headers.names[i], headers.values[i]}
	}
	ctx.Set(contextResponse, sd.Map{
		"code":    int64(code),
		"message": message,
		contextHeaders: pairs,
	})
}
