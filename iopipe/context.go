package iopipe

import "github.com/llio/llio/sd"

// Context carries the free-form, per-chain state a chain's pipes use to pass
// information to each other out of band from the buffer (eg. an HTTP
// request's verb and path, or an RPC call's in-flight method name). It is
// not goroutine-safe: a chain is only ever driven by one pump at a time.
type Context struct {
	Value sd.Value
}

// NewContext returns a Context wrapping an empty map, the common case for
// chains that accumulate key/value state as they run.
func NewContext() *Context {
	return &Context{Value: sd.Map{}}
}

// Get reads a named field out of the context, assuming it wraps a sd.Map.
// It returns false if the context does not hold a map or the key is absent.
func (c *Context) Get(key string) (sd.Value, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.Value.(sd.Map)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Set writes a named field into the context, lazily turning it into a map if
// it was previously nil or some other value.
func (c *Context) Set(key string, value sd.Value) {
	m, ok := c.Value.(sd.Map)
	if !ok {
		m = sd.Map{}
	}
	m[key] = value
	c.Value = m
}
