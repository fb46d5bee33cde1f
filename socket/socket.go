// Package socket provides non-blocking TCP socket pipes for use in chains
// driven by package pump: a reader pipe pulls bytes off the wire onto a
// channel, a writer pipe drains a channel onto the wire, and a server pipe
// accepts incoming connections and spins up a reactor chain per
// connection. The Go analogue of LLSocket/LLIOSocketReader/
// LLIOSocketWriter/LLIOServerSocket.
package socket

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Type distinguishes the two socket kinds LLSocket::create supported.
type Type int

const (
	StreamTCP Type = iota
	DatagramUDP
)

// Port sentinel values, mirroring LLSocket's PORT_INVALID/PORT_EPHEMERAL.
const (
	PortInvalid   = 0
	PortEphemeral = -1
)

const (
	listenBacklog = 10
	sendBufSize   = 40000
	recvBufSize   = 40000
)

// Socket wraps a single non-blocking OS socket file descriptor.
type Socket struct {
	fd   int
	port int
}

// Create opens a new TCP or UDP socket. If port is non-zero, the socket is
// bound to it (SO_REUSEADDR set first) and, for StreamTCP, put into the
// listening state; a zero port leaves the socket unbound with an ephemeral
// port. The returned socket is always non-blocking.
func Create(typ Type, port uint16) (*Socket, error) {
	domain := unix.AF_INET
	sockType := unix.SOCK_STREAM
	proto := 0
	if typ == DatagramUDP {
		sockType = unix.SOCK_DGRAM
	}

	fd, err := unix.Socket(domain, sockType, proto)
	if err != nil {
		return nil, fmt.Errorf("socket: create: %w", err)
	}

	s := &Socket{fd: fd, port: PortEphemeral}

	if port > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("socket: reuseaddr: %w", err)
		}
		addr := &unix.SockaddrInet4{Port: int(port)}
		if err := unix.Bind(fd, addr); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("socket: bind: %w", err)
		}
		if typ == StreamTCP {
			if err := unix.Listen(fd, listenBacklog); err != nil {
				unix.Close(fd)
				return nil, fmt.Errorf("socket: listen: %w", err)
			}
		}
		s.port = int(port)
	}

	if err := s.SetNonBlocking(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

// FromRawFD wraps an already-open, already-connected file descriptor (eg.
// one returned by accept(2)), mirroring LLSocket::create(apr_socket_t*,...).
func FromRawFD(fd int) (*Socket, error) {
	s := &Socket{fd: fd, port: PortEphemeral}
	if err := s.SetNonBlocking(); err != nil {
		return nil, err
	}
	return s, nil
}

// BlockingConnect connects to host:port using a temporarily blocking
// socket, then restores non-blocking mode, mirroring
// LLSocket::blockingConnect.
func (s *Socket) BlockingConnect(host string, port uint16) error {
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("socket: resolve %s: %w", host, err)
	}
	ip4 := ips[0].To4()
	if ip4 == nil {
		return fmt.Errorf("socket: %s is not an IPv4 address", host)
	}

	if err := s.SetBlocking(1000); err != nil {
		return err
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	copy(addr.Addr[:], ip4)
	if err := unix.Connect(s.fd, addr); err != nil {
		return fmt.Errorf("socket: connect %s:%d: %w", host, port, err)
	}
	return s.SetNonBlocking()
}

// Accept accepts one pending connection off a listening socket, wrapping
// the new file descriptor and reporting the remote address, mirroring the
// accept step of LLIOServerSocket::process_impl.
func (s *Socket) Accept() (conn *Socket, remoteHost string, remotePort uint16, err error) {
	fd, sa, err := unix.Accept(s.fd)
	if err != nil {
		return nil, "", 0, err
	}
	conn, err = FromRawFD(fd)
	if err != nil {
		return nil, "", 0, err
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		remoteHost = net.IP(in4.Addr[:]).String()
		remotePort = uint16(in4.Port)
	}
	return conn, remoteHost, remotePort, nil
}

// FD returns the underlying file descriptor.
func (s *Socket) FD() int { return s.fd }

// GetPort returns the socket's bound port, or PortEphemeral/PortInvalid.
func (s *Socket) GetPort() int { return s.port }

// SetBlocking puts the socket into blocking mode with the given receive
// timeout in milliseconds and restores the send/receive buffer sizes,
// mirroring LLSocket::setBlocking.
func (s *Socket) SetBlocking(timeoutMs int) error {
	if err := unix.SetNonblock(s.fd, false); err != nil {
		return err
	}
	tv := unix.NsecToTimeval(int64(timeoutMs) * 1e6)
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return err
	}
	return s.setBuffers()
}

// SetNonBlocking puts the socket into non-blocking mode, mirroring
// LLSocket::setNonBlocking.
func (s *Socket) SetNonBlocking() error {
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return err
	}
	return s.setBuffers()
}

func (s *Socket) setBuffers() error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sendBufSize); err != nil {
		return err
	}
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufSize)
}

// Close closes the underlying file descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// Addr formats host:port the way log lines and contexts want it.
func Addr(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
