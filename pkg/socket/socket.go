// Package socket opens and drives sockets whose addresses are exchanged in
// the packed binary form produced by package sockaddr.
package socket

import (
	"context"
	"fmt"
	"os"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	sock "github.com/mdlayher/socket"
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// connName is attached to every descriptor this package creates.
const connName = "sockwire"

// Config holds options for Open.
type Config struct {
	// NetNS is the name of a network namespace under /var/run/netns. The
	// socket is created inside it. Empty means the namespace of the caller.
	NetNS string
}

// A Socket is an open socket. It is safe for concurrent use to the same
// degree as the underlying descriptor.
type Socket struct {
	c      *sock.Conn
	domain int
}

// Open creates a socket, like socket(2). SOCK_NONBLOCK and SOCK_CLOEXEC are
// always added to typ.
func Open(domain, typ, proto int, cfg *Config) (*Socket, error) {
	var sockCfg sock.Config
	if cfg != nil && cfg.NetNS != "" {
		ns, err := netns.GetFromName(cfg.NetNS)
		if err != nil {
			return nil, fmt.Errorf("open network namespace %s: %w", cfg.NetNS, err)
		}
		defer ns.Close()
		sockCfg.NetNS = int(ns)
	}

	c, err := sock.Socket(domain, typ, proto, connName, &sockCfg)
	if err != nil {
		return nil, fmt.Errorf("create socket (%s, %d, %d): %w", sockaddr.Family(domain), typ, proto, err)
	}

	s := &Socket{c: c, domain: domain}
	log.
		WithField("family", sockaddr.Family(domain)).
		WithField("type", typ).
		WithField("protocol", proto).
		Debug("Opened socket")
	return s, nil
}

// Pair creates a pair of connected sockets, like socketpair(2).
func Pair(domain, typ, proto int) (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, nil, fmt.Errorf("create socket pair: %w", os.NewSyscallError("socketpair", err))
	}

	a, err := sock.New(fds[0], connName)
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, fmt.Errorf("wrap first socket: %w", err)
	}
	b, err := sock.New(fds[1], connName)
	if err != nil {
		a.Close()
		unix.Close(fds[1])
		return nil, nil, fmt.Errorf("wrap second socket: %w", err)
	}

	return &Socket{c: a, domain: domain}, &Socket{c: b, domain: domain}, nil
}

// Bind assigns the packed address addr to the socket.
func (s *Socket) Bind(addr []byte) error {
	sa, err := toSockaddr(addr)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if err := s.c.Bind(sa); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	log.WithField("addr", describe(addr)).Debug("Bound socket")
	return nil
}

// Connect connects the socket to the packed address addr. It blocks until
// the connection is established or ctx is done.
func (s *Socket) Connect(ctx context.Context, addr []byte) error {
	sa, err := toSockaddr(addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if _, err := s.c.Connect(ctx, sa); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	log.WithField("addr", describe(addr)).Debug("Connected socket")
	return nil
}

// Listen marks the socket as accepting connections.
func (s *Socket) Listen(backlog int) error {
	if err := s.c.Listen(backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Accept waits for a connection on a listening socket. It returns the new
// socket and the peer address in both its packed and structured forms.
func (s *Socket) Accept(ctx context.Context) (*Socket, []byte, sockaddr.Fields, error) {
	c, sa, err := s.c.Accept(ctx, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("accept: %w", err)
	}

	addr, fields, err := fromSockaddr(sa)
	if err != nil {
		c.Close()
		return nil, nil, nil, fmt.Errorf("accept: %w", err)
	}

	log.WithField("peer", describe(addr)).Debug("Accepted connection")
	return &Socket{c: c, domain: s.domain}, addr, fields, nil
}

// LocalAddr returns the address the socket is bound to, as getsockname(2)
// reports it.
func (s *Socket) LocalAddr() (sockaddr.Fields, error) {
	sa, err := s.c.Getsockname()
	if err != nil {
		return nil, fmt.Errorf("get socket name: %w", err)
	}
	_, fields, err := fromSockaddr(sa)
	if err != nil {
		return nil, fmt.Errorf("get socket name: %w", err)
	}
	return fields, nil
}

// PeerAddr returns the address of the connected peer.
func (s *Socket) PeerAddr() (sockaddr.Fields, error) {
	sa, err := s.c.Getpeername()
	if err != nil {
		return nil, fmt.Errorf("get peer name: %w", err)
	}
	_, fields, err := fromSockaddr(sa)
	if err != nil {
		return nil, fmt.Errorf("get peer name: %w", err)
	}
	return fields, nil
}

// SendTo sends p to the packed address to. A nil to sends on a connected
// socket, like send(2). It returns the number of bytes sent.
func (s *Socket) SendTo(ctx context.Context, p []byte, flags int, to []byte) (int, error) {
	var sa unix.Sockaddr
	if to != nil {
		var err error
		if sa, err = toSockaddr(to); err != nil {
			return 0, fmt.Errorf("send: %w", err)
		}
	}

	n, err := s.c.Sendmsg(ctx, p, nil, sa, flags)
	if err != nil {
		return n, fmt.Errorf("send: %w", err)
	}
	return n, nil
}

// RecvFrom receives up to n bytes. The sender address is nil for connected
// stream sockets. At the end of a stream the error wraps io.EOF.
func (s *Socket) RecvFrom(ctx context.Context, n, flags int) ([]byte, sockaddr.Fields, error) {
	if n < 0 {
		return nil, nil, fmt.Errorf("receive %d bytes: %w", n, os.NewSyscallError("recvfrom", unix.EINVAL))
	}
	buf := make([]byte, n)
	read, sa, err := s.c.Recvfrom(ctx, buf, flags)
	if err != nil {
		return nil, nil, fmt.Errorf("receive: %w", err)
	}

	_, fields, err := fromSockaddr(sa)
	if err != nil {
		return nil, nil, fmt.Errorf("receive: %w", err)
	}
	return buf[:read], fields, nil
}

// Shutdown shuts down part of a full-duplex connection. how is one of
// SHUT_RD, SHUT_WR or SHUT_RDWR.
func (s *Socket) Shutdown(how int) error {
	if err := s.c.Shutdown(how); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close closes the socket. Blocked operations return immediately.
func (s *Socket) Close() error {
	return s.c.Close()
}

// Fd returns the descriptor number. It stays owned by the Socket.
func (s *Socket) Fd() (int, error) {
	fd := -1
	err := s.control("fd", func(raw int) error {
		fd = raw
		return nil
	})
	return fd, err
}

// Domain returns the address family the socket was opened with.
func (s *Socket) Domain() sockaddr.Family {
	return sockaddr.Family(s.domain)
}

func (s *Socket) control(op string, f func(fd int) error) error {
	rc, err := s.c.SyscallConn()
	if err != nil {
		return err
	}

	var ferr error
	if err := rc.Control(func(fd uintptr) { ferr = f(int(fd)) }); err != nil {
		return err
	}
	if ferr != nil {
		return os.NewSyscallError(op, ferr)
	}
	return nil
}
