// Package urlclient pins the interfaces an outbound HTTP request
// participant must satisfy to plug into a chain: the destination-URL
// extraction pipe that reads it out of the chain's context, and the
// completion callback a caller implements to receive the response. It
// is interface-only, grounded on llurlrequest.cpp's LLContextURLExtractor
// and LLURLRequestComplete — the transport itself (LLURLRequest wraps
// libcurl) is out of scope: this module's core never initiates outbound
// requests on its own, it only needs to pin down what an embedder's
// request pipe and completion handler look like.
package urlclient

import (
	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
)

// Action names the HTTP verb an outbound request pipe should issue,
// grounded on LLURLRequest::ERequestAction.
type Action int

const (
	Get Action = iota
	Put
	Post
	Delete
)

// ContextDestURI is the context key an outbound request chain reads its
// target URL from, grounded on llurlrequest.cpp's CONTEXT_DEST_URI_SD_LABEL.
const ContextDestURI = "dest_uri"

// Complete is the callback contract a request's completion pipe invokes,
// grounded on LLURLRequestComplete: Header/HTTPStatus arrive as the
// response headers are parsed, then exactly one of Response or
// NoResponse once the body is fully available (or the request failed).
type Complete interface {
	// Header is called once per parsed response header line.
	Header(name, value string)

	// HTTPStatus is called once the response's status line has arrived.
	HTTPStatus(code int, reason string)

	// ResponseStatus records the iopipe.Status the request chain finished
	// with.
	ResponseStatus(status iopipe.Status)

	// Response is called with the completed response body channel and
	// buffer when the request succeeded.
	Response(channels buffer.Channels, buf *buffer.Array)

	// NoResponse is called in place of Response when the request did not
	// succeed.
	NoResponse()
}

// NewChain builds the chain an outbound request's pipes belong to and
// marks it as outbound-request-bearing, so the pump's per-tick validity
// recheck applies to it: as soon as any of pipes reports IsValid() ==
// false, the pump tears the chain down without waiting for it to be
// scheduled again, grounded on LLPumpIO::addChain's has_curl_request
// parameter (true for chains built around an LLURLRequest).
func NewChain(buf *buffer.Array, channels buffer.Channels, pipes []iopipe.Pipe) *iopipe.Chain {
	chain := iopipe.NewChainOn(buf, channels, pipes)
	chain.HasOutboundRequest = true
	return chain
}

// ContextURLExtractor moves its input segments onto its output channel
// unchanged and, on the same call, reads ContextDestURI out of the chain's
// context and hands it to SetURL; it does not wait for eos. It is grounded
// on LLContextURLExtractor::process_impl.
type ContextURLExtractor struct {
	iopipe.Base

	// SetURL receives the extracted destination URL, typically
	// request.SetURL on the outbound request pipe this extractor feeds.
	SetURL func(url string)
}

// Process implements iopipe.Pipe.
func (e *ContextURLExtractor) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if ctx == nil || e.SetURL == nil {
		return iopipe.PRECONDITION_NOT_MET
	}

	buf.ChangeChannel(channels.In(), channels.Out())

	dest, ok := ctx.Get(ContextDestURI)
	if !ok {
		return iopipe.ERROR
	}
	url, ok := dest.(string)
	if !ok {
		return iopipe.ERROR
	}
	e.SetURL(url)
	return iopipe.DONE
}
