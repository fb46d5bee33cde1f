// Package rpc implements a structured-data remote procedure call server: a
// method table keyed by name, a request/response wire shape of
// {method, parameter}/{response}/{fault}, and a deferred/callback dispatch
// protocol that lets a method answer synchronously, from the pump's
// callback cycle, or from another goroutine entirely. Grounded on
// llsdrpcserver.h/.cpp.
package rpc

import (
	"sync"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/sd"
	"github.com/puzpuzpuz/xsync/v3"
)

// Fault codes, grounded on LLSDRPCServer's FAULT_BAD_REQUEST/
// FAULT_NO_RESPONSE and llsdrpcserver.cpp's FAULT_GENERIC/
// FAULT_METHOD_NOT_FOUND.
const (
	FaultGeneric        = 1000
	FaultMethodNotFound = 1001
	FaultBadRequest     = 2000
	FaultNoResponse     = 2001
)

// Status is a method call's outcome, grounded on ESDRPCSStatus.
type Status int

const (
	// Deferred means the method will complete later; the server locks its
	// chain and waits for DeferredResponse (if set) to be invoked once the
	// lock is cleared by ClearLock.
	Deferred Status = iota
	// Callback means the server should re-invoke this method on the
	// pump's callback cycle rather than inline.
	Callback
	// Done means the method has already written its response (via
	// BuildResponse/BuildFault) onto channels.Out.
	Done
	// Error means the call failed; the server emits a generic fault.
	Error
)

// Method answers one RPC call. It receives the call's decoded parameter,
// the channels to write a response onto, and the chain's buffer, and
// returns how the server should proceed.
type Method func(params sd.Value, channels buffer.Channels, buf *buffer.Array) Status

type serverState int

const (
	stateNone serverState = iota
	stateCallback
	stateDeferred
	stateDone
)

// Server is a routed RPC endpoint: a method table dispatched by the
// "method" field of a decoded request body, grounded on LLSDRPCServer.
// One Server instance serves exactly one request; build a fresh instance
// per connection/request with Clone (an httpio.Router Node normally does
// this through Factory).
type Server struct {
	iopipe.Base

	methods         *xsync.MapOf[string, Method]
	callbackMethods *xsync.MapOf[string, Method]

	// DeferredResponse is called once a Deferred method's lock has been
	// cleared, to let the server emit the final result. The base
	// behavior (nil) is equivalent to immediately returning Done with
	// whatever BuildResponse/BuildFault call the method already made
	// before deferring.
	DeferredResponse func(channels buffer.Channels, buf *buffer.Array) Status

	mu      sync.Mutex
	state   serverState
	request sd.Map
	lock    int32
}

// NewServer returns an empty Server; register methods with Handle and
// HandleCallback before serving any request.
func NewServer() *Server {
	return &Server{
		methods:         xsync.NewMapOf[string, Method](),
		callbackMethods: xsync.NewMapOf[string, Method](),
	}
}

// Handle registers a method called inline from Process.
func (s *Server) Handle(name string, m Method) {
	s.methods.Store(name, m)
}

// HandleCallback registers a method that must run on the pump's callback
// cycle instead of inline, the mCallbackMethods table in the original.
func (s *Server) HandleCallback(name string, m Method) {
	s.callbackMethods.Store(name, m)
}

// Clone returns a fresh Server sharing this one's method tables and
// DeferredResponse hook but none of its per-request state, for building
// one Server instance per incoming request off a shared template.
func (s *Server) Clone() *Server {
	return &Server{
		methods:          s.methods,
		callbackMethods:  s.callbackMethods,
		DeferredResponse: s.DeferredResponse,
	}
}

// ClearLock releases a lock obtained while deferring a response, the public
// clearLock() method a deferred method implementation calls (possibly from
// another goroutine) once its result is ready. pump must be the same pump
// instance that originally processed this request.
func (s *Server) ClearLock(pump iopipe.Pump) {
	s.mu.Lock()
	lock := s.lock
	s.lock = 0
	s.mu.Unlock()
	if lock != 0 && pump != nil {
		pump.ClearLock(lock)
	}
}

// Process implements iopipe.Pipe, grounded on LLSDRPCServer::process_impl.
func (s *Server) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if !*eos {
		return iopipe.BREAK
	}
	if pump == nil || buf == nil {
		return iopipe.PRECONDITION_NOT_MET
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case stateDeferred:
		result := Done
		if s.DeferredResponse != nil {
			result = s.DeferredResponse(channels, buf)
		}
		if result != Done {
			BuildFault(channels, buf, FaultGeneric, "deferred response failed.")
		}
		s.mu.Lock()
		s.state = stateDone
		s.mu.Unlock()
		return iopipe.DONE

	case stateCallback:
		s.mu.Lock()
		req := s.request
		s.mu.Unlock()
		name, _ := req["method"].(string)
		params, hasParams := req["parameter"]
		if name != "" && hasParams {
			if s.callbackMethod(name, params, channels, buf) != Done {
				BuildFault(channels, buf, FaultGeneric, "Callback method call failed.")
			}
		} else {
			BuildFault(channels, buf, FaultGeneric, "Invalid rpc server state - callback without method.")
		}
		pump.ClearLock(s.currentLock())
		s.mu.Lock()
		s.lock = 0
		s.state = stateDone
		s.mu.Unlock()
		return iopipe.DONE

	case stateDone:
		return iopipe.DONE
	}

	// stateNone: first time through, decode the request and dispatch.
	req, ok := decodeRequest(channels, buf)
	if !ok {
		BuildFault(channels, buf, FaultGeneric, "Unable to find method and parameter in request.")
		return iopipe.DONE
	}
	s.mu.Lock()
	s.request = req
	s.mu.Unlock()

	name, _ := req["method"].(string)
	params, hasParams := req["parameter"]
	if name == "" || !hasParams {
		BuildFault(channels, buf, FaultGeneric, "Unable to find method and parameter in request.")
		return iopipe.DONE
	}

	switch s.callMethod(name, params, channels, buf) {
	case Deferred:
		s.mu.Lock()
		s.lock = pump.SetLock()
		s.state = stateDeferred
		s.mu.Unlock()
		return iopipe.BREAK
	case Callback:
		s.mu.Lock()
		s.state = stateCallback
		s.mu.Unlock()
		respondChain := iopipe.NewChainOn(buf, channels, []iopipe.Pipe{s})
		pump.Respond(respondChain, buf, ctx)
		s.mu.Lock()
		s.lock = pump.SetLock()
		s.mu.Unlock()
		return iopipe.BREAK
	case Done:
		s.mu.Lock()
		s.state = stateDone
		s.mu.Unlock()
		return iopipe.DONE
	default:
		BuildFault(channels, buf, FaultGeneric, "Method call failed.")
		return iopipe.DONE
	}
}

func (s *Server) currentLock() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock
}

// callMethod looks up name in the inline method table, falling back to
// reporting Callback if it's only registered on the callback table,
// grounded on LLSDRPCServer::callMethod.
func (s *Server) callMethod(name string, params sd.Value, channels buffer.Channels, buf *buffer.Array) Status {
	if m, ok := s.methods.Load(name); ok {
		return m(params, channels, buf)
	}
	if _, ok := s.callbackMethods.Load(name); ok {
		return Callback
	}
	BuildFault(channels, buf, FaultMethodNotFound, "rpc server unable to find method: "+name)
	return Done
}

// callbackMethod looks up name in the callback method table, grounded on
// LLSDRPCServer::callbackMethod.
func (s *Server) callbackMethod(name string, params sd.Value, channels buffer.Channels, buf *buffer.Array) Status {
	if m, ok := s.callbackMethods.Load(name); ok {
		return m(params, channels, buf)
	}
	BuildFault(channels, buf, FaultMethodNotFound, "rpc server unable to find callback method: "+name)
	return Done
}

func decodeRequest(channels buffer.Channels, buf *buffer.Array) (sd.Map, bool) {
	n := buf.CountAfter(channels.In(), nil)
	if n == 0 {
		return nil, false
	}
	body := make([]byte, n)
	buf.ReadAfter(channels.In(), nil, body)
	value, _, err := sd.FromNotation(body)
	if err != nil {
		return nil, false
	}
	m, ok := value.(sd.Map)
	return m, ok
}

// BuildFault writes a {'fault': {'code': ..., 'description': ...}} body
// onto channels.Out, grounded on LLSDRPCServer::buildFault.
func BuildFault(channels buffer.Channels, buf *buffer.Array, code int, msg string) {
	body := sd.ToNotation(sd.Map{
		"fault": sd.Map{
			"code":        int64(code),
			"description": msg,
		},
	})
	buf.Append(channels.Out(), body)
}

// BuildResponse writes a {'response': value} body onto channels.Out,
// grounded on LLSDRPCServer::buildResponse.
func BuildResponse(channels buffer.Channels, buf *buffer.Array, value sd.Value) {
	body := sd.ToNotation(sd.Map{"response": value})
	buf.Append(channels.Out(), body)
}
