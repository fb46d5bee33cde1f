package httpio

import (
	"strings"
	"time"

	"github.com/llio/llio/iopipe"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// ContentType names how a Node expects its request body to be decoded
// before being handed to a PUT/POST handler, mirroring
// LLHTTPNode::getContentType.
type ContentType int

const (
	// ContentTypeNotation decodes the body with sd.FromNotation.
	ContentTypeNotation ContentType = iota
	// ContentTypeText passes the body through as a raw string.
	ContentTypeText
)

// Handler answers one verb against a routed Node. params is the decoded
// request body for PUT/POST, and nil for GET/DELETE/OPTIONS.
type Handler func(resp *Response, ctx *iopipe.Context, params interface{})

// NodeFactory builds a protocol-specific pipe chain for a Node instead of
// the default structured-data dispatch, the seam
// lliohttpserver.cpp calls getProtocolHandler/LLChainIOFactory::build and
// this module's RPC server plugs into as an httpio.Router node, per
// llsdrpcserver.h's LLSDRPCServerFactory pattern.
type NodeFactory interface {
	Build(ctx *iopipe.Context) (pipes []iopipe.Pipe, ok bool)
}

// Node is one entry in the routed URL tree: a set of per-verb handlers, or
// a protocol handler factory that takes over the whole sub-chain.
type Node struct {
	Get, Put, Post, Delete, Options Handler
	ContentType                     ContentType
	Factory                         NodeFactory
}

// HasHandler reports whether verb has a registered handler on this node.
func (n *Node) HasHandler(verb string) bool {
	switch verb {
	case VerbGet:
		return n.Get != nil
	case VerbPut:
		return n.Put != nil
	case VerbPost:
		return n.Post != nil
	case VerbDelete:
		return n.Delete != nil
	case VerbOptions:
		return n.Options != nil
	default:
		return false
	}
}

// Router is the URL-routed dispatch tree: a path is split into '/'
// segments and matched against registered routes, with a single trailing
// wildcard segment ("*") standing in for "rest of path", the shape
// llhttpnode.h's wildcard children take (the header itself was not in the
// retrieved corpus; this is the natural Go rendition of "traverse a path
// down a node tree, falling back to a wildcard child").
//
// Built once at startup and read concurrently by every connection's
// chain, so the route table and per-route rate limiters use xsync.MapOf
// rather than a plain map guarded by a mutex.
type Router struct {
	routes   *xsync.MapOf[string, *Node]
	limiters *xsync.MapOf[string, *rate.Limiter]
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{
		routes:   xsync.NewMapOf[string, *Node](),
		limiters: xsync.NewMapOf[string, *rate.Limiter](),
	}
}

// Handle registers node at path. A trailing "/*" segment matches any
// remaining path suffix.
func (r *Router) Handle(path string, node *Node) {
	r.routes.Store(normalizePath(path), node)
}

// Limit installs a per-route token-bucket rate limit of rps requests per
// second with the given burst, generalizing bgpfix's
// pipe.Callback.LimitRate to an HTTP route instead of a single callback.
// The limiter is consulted only through Allow; Responder does not call
// Allow, so requests it dispatches are not limited.
func (r *Router) Limit(path string, rps float64, burst int) {
	r.limiters.Store(normalizePath(path), rate.NewLimiter(rate.Limit(rps), burst))
}

// Traverse finds the node registered for path, trying progressively
// shorter wildcard prefixes when there is no exact match, mirroring
// LLHTTPNode::traverse's walk from the most to least specific route.
func (r *Router) Traverse(path string) (*Node, bool) {
	path = normalizePath(path)
	if node, ok := r.routes.Load(path); ok {
		return node, true
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments); i > 0; i-- {
		candidate := "/" + strings.Join(segments[:i], "/") + "/*"
		if node, ok := r.routes.Load(candidate); ok {
			return node, true
		}
	}
	return nil, false
}

// Allow reports whether a request against path is within its route's rate
// limit, defaulting to true for routes with no limiter installed. It
// checks the limiter at the most specific registered path, same lookup
// order as Traverse.
func (r *Router) Allow(path string, at time.Time) bool {
	path = normalizePath(path)
	if lim, ok := r.limiters.Load(path); ok {
		return lim.AllowN(at, 1)
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments); i > 0; i-- {
		candidate := "/" + strings.Join(segments[:i], "/") + "/*"
		if lim, ok := r.limiters.Load(candidate); ok {
			return lim.AllowN(at, 1)
		}
	}
	return true
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
