package socket

import (
	"github.com/llio/llio/buffer"
	"github.com/llio/llio/iopipe"
)

// ReactorFunc builds the middle of a per-connection chain (the part
// between the socket reader and socket writer) given the connection's
// context; it returns false if it could not build a reactor for this
// connection. Grounded on LLChainIOFactory::build.
type ReactorFunc func(ctx *iopipe.Context) (pipes []iopipe.Pipe, ok bool)

const defaultResponseTimeout float32 = 30

// Server accepts incoming connections on a listening socket and spins up a
// reactor chain (reader, the reactor's own pipes, writer) for each one,
// grounded on LLIOServerSocket.
type Server struct {
	iopipe.Base

	listener        *Socket
	reactor         ReactorFunc
	initialized     bool
	responseTimeout float32
}

// NewServer returns a server pipe accepting connections off listener and
// building a reactor chain via reactor for each.
func NewServer(listener *Socket, reactor ReactorFunc) *Server {
	return &Server{listener: listener, reactor: reactor, responseTimeout: defaultResponseTimeout}
}

// SetResponseTimeout sets the timeout, in seconds from acceptance, given to
// each accepted connection's chain, mirroring LLIOServerSocket::setResponseTimeout.
func (s *Server) SetResponseTimeout(secs float32) {
	s.responseTimeout = secs
}

// Process implements iopipe.Pipe.
func (s *Server) Process(channels buffer.Channels, buf *buffer.Array, eos *bool, ctx *iopipe.Context, pump iopipe.Pump) iopipe.Status {
	if pump == nil {
		return iopipe.ERROR
	}

	if !s.initialized {
		s.initialized = true
		pump.SetConditional(s, &iopipe.PollDesc{Fd: s.listener.FD(), Readable: true})
		return iopipe.OK
	}

	conn, remoteHost, remotePort, err := s.listener.Accept()
	if err != nil {
		// Non-fatal: stay registered and wait for the next readiness
		// signal, rather than tearing down the whole server chain.
		return iopipe.OK
	}

	connCtx := iopipe.NewContext()
	connCtx.Set("remote-host", remoteHost)
	connCtx.Set("remote-port", int64(remotePort))

	pipes := []iopipe.Pipe{NewReader(conn)}
	if s.reactor != nil {
		reactorPipes, ok := s.reactor(connCtx)
		if !ok {
			conn.Close()
			return iopipe.OK
		}
		pipes = append(pipes, reactorPipes...)
	}
	pipes = append(pipes, NewWriter(conn))

	chain := iopipe.NewChain(pipes)
	chain.Ctx = connCtx
	pump.AddChain(chain, s.responseTimeout)

	// Always report success: a server socket that errors out would be
	// dropped from the pump entirely.
	return iopipe.OK
}

// IsValid reports whether the listening socket is still set.
func (s *Server) IsValid() bool { return s.listener != nil }
