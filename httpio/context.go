// Package httpio implements the server-side HTTP/1.0 protocol stack: a
// per-connection request parser (Responder), a URL-routed dispatch tree
// (Router), the deferred/synchronous response object (Response), and the
// response header writer pipe, grounded on lliohttpserver.cpp.
package httpio

import (
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
)

// Context keys, grounded on lliohttpserver.cpp's CONTEXT_REQUEST/
// CONTEXT_RESPONSE/CONTEXT_VERB/CONTEXT_HEADERS string constants.
const (
	contextRequest  = "request"
	contextResponse = "response"
	contextVerb     = "verb"
	contextHeaders  = "headers"
)

// HTTP verbs recognised by the Responder, mirroring HTTP_VERB_GET et al.
const (
	VerbGet     = "GET"
	VerbPut     = "PUT"
	VerbPost    = "POST"
	VerbDelete  = "DELETE"
	VerbOptions = "OPTIONS"
)

// requestInfo reads the per-request fields a routed handler cares about
// back out of ctx.
func requestInfo(ctx *iopipe.Context) (verb, path, query, remoteHost string, remotePort int64, headers sd.Map) {
	req, _ := ctx.Get(contextRequest)
	m, ok := req.(sd.Map)
	if !ok {
		return "", "", "", "", 0, nil
	}
	verb, _ = m[contextVerb].(string)
	path, _ = m["path"].(string)
	query, _ = m["query-string"].(string)
	remoteHost, _ = m["remote-host"].(string)
	remotePort, _ = m["remote-port"].(int64)
	headers, _ = m[contextHeaders].(sd.Map)
	return verb, path, query, remoteHost, remotePort, headers
}
