package rpc

import "github.com/llio/llio/iopipe"

// Factory adapts a Server into an httpio.Router node by cloning Template
// for each routed request, grounded on LLSDRPCServerFactory<Server> and
// LLSDRPCNode<Server>. It does not implement the XML-RPC wire variant of
// the original (LLXMLRPCServerFactory/LLXMLRPCNode); SPEC_FULL.md scopes
// that format out.
type Factory struct {
	Template *Server
}

// NewFactory returns a Factory cloning template for every request routed
// to it.
func NewFactory(template *Server) *Factory {
	return &Factory{Template: template}
}

// Build implements httpio.NodeFactory.
func (f *Factory) Build(ctx *iopipe.Context) ([]iopipe.Pipe, bool) {
	if f.Template == nil {
		return nil, false
	}
	return []iopipe.Pipe{f.Template.Clone()}, true
}
