package socket

import (
	"fmt"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	"golang.org/x/sys/unix"
)

// toSockaddr decodes a packed address into the form x/sys/unix passes to
// the kernel. IPv6 flow information is not carried by unix.SockaddrInet6
// and is dropped.
func toSockaddr(b []byte) (unix.Sockaddr, error) {
	a, err := sockaddr.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}

	switch a := a.(type) {
	case *sockaddr.Inet4:
		return &unix.SockaddrInet4{Port: int(a.Port), Addr: a.Addr}, nil
	case *sockaddr.Inet6:
		return &unix.SockaddrInet6{Port: int(a.Port), ZoneId: a.ScopeID, Addr: a.Addr}, nil
	case *sockaddr.Unix:
		return &unix.SockaddrUnix{Name: a.Name()}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFamily, a.Family())
	}
}

// fromSockaddr encodes an address returned by the kernel. A nil sa, as
// returned for connected stream sockets, yields nil results.
func fromSockaddr(sa unix.Sockaddr) ([]byte, sockaddr.Fields, error) {
	var a sockaddr.Address
	switch sa := sa.(type) {
	case nil:
		return nil, nil, nil
	case *unix.SockaddrInet4:
		a = &sockaddr.Inet4{Port: uint16(sa.Port), Addr: sa.Addr}
	case *unix.SockaddrInet6:
		a = &sockaddr.Inet6{Port: uint16(sa.Port), Addr: sa.Addr, ScopeID: sa.ZoneId}
	case *unix.SockaddrUnix:
		un, err := sockaddr.NewUnix(sa.Name)
		if err != nil {
			return nil, nil, err
		}
		a = un
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedFamily, sa)
	}

	return sockaddr.Encode(a), sockaddr.ToFields(a), nil
}

// describe renders a packed address for log output.
func describe(b []byte) string {
	a, err := sockaddr.Decode(b)
	if err != nil {
		return fmt.Sprintf("<%d bytes>", len(b))
	}

	switch a := a.(type) {
	case *sockaddr.Inet4:
		return a.AddrPort().String()
	case *sockaddr.Inet6:
		return a.AddrPort().String()
	case *sockaddr.Unix:
		return a.Name()
	default:
		return a.Family().String()
	}
}
