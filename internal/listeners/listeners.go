// Package listeners enumerates the sockets on the host that accept traffic,
// read from the proc filesystem, with their local addresses in packed and
// structured form.
package listeners

import (
	"fmt"
	"net"
	"net/netip"
	"sort"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// Listener is a listening TCP socket or a bound UDP socket.
type Listener struct {
	Protocol string // tcp, tcp6, udp or udp6
	Inode    uint64
	UID      uint64
	Addr     []byte
	Fields   sockaddr.Fields
}

// AddrPort returns the local address of the socket.
func (l Listener) AddrPort() netip.AddrPort {
	a, err := sockaddr.Decode(l.Addr)
	if err != nil {
		return netip.AddrPort{}
	}
	switch a := a.(type) {
	case *sockaddr.Inet4:
		return a.AddrPort()
	case *sockaddr.Inet6:
		return a.AddrPort()
	}
	return netip.AddrPort{}
}

// Conflicts reports whether binding ip on the listener's port would collide
// with it.
func (l Listener) Conflicts(ip netip.Addr) bool {
	local := l.AddrPort().Addr().Unmap()
	return local.IsUnspecified() || local == ip.Unmap()
}

type source struct {
	protocol string
	read     func(procfs.FS) (procfs.NetTCP, error)
	tcp      bool
}

// UDP lines are read as procfs.NetTCP; both slice types share one line type.
var sources = []source{
	{"tcp", procfs.FS.NetTCP, true},
	{"tcp6", procfs.FS.NetTCP6, true},
	{"udp", func(fs procfs.FS) (procfs.NetTCP, error) {
		lines, err := fs.NetUDP()
		return procfs.NetTCP(lines), err
	}, false},
	{"udp6", func(fs procfs.FS) (procfs.NetTCP, error) {
		lines, err := fs.NetUDP6()
		return procfs.NetTCP(lines), err
	}, false},
}

// List returns the listening sockets found in fs, ordered by protocol and
// port.
func List(fs procfs.FS) ([]Listener, error) {
	var result []Listener
	for _, src := range sources {
		lines, err := src.read(fs)
		if err != nil {
			return nil, fmt.Errorf("reading %s socket information: %w", src.protocol, err)
		}

		for _, line := range lines {
			// See https://github.com/torvalds/linux/blob/master/include/net/tcp_states.h
			// for the list of states. UDP has no listening state, so every
			// bound UDP socket counts.
			if line.Inode == 0 || (src.tcp && line.St != netlink.TCP_LISTEN) {
				continue
			}

			a, err := localAddress(line.LocalAddr, line.LocalPort)
			if err != nil {
				return nil, fmt.Errorf("%s socket %d: %w", src.protocol, line.Inode, err)
			}
			result = append(result, Listener{
				Protocol: src.protocol,
				Inode:    line.Inode,
				UID:      line.UID,
				Addr:     sockaddr.Encode(a),
				Fields:   sockaddr.ToFields(a),
			})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Protocol != result[j].Protocol {
			return result[i].Protocol < result[j].Protocol
		}
		return result[i].AddrPort().Port() < result[j].AddrPort().Port()
	})

	log.WithField("count", len(result)).Debug("Enumerated listening sockets")
	return result, nil
}

func localAddress(ip net.IP, port uint64) (sockaddr.Address, error) {
	if port > 0xffff {
		return nil, fmt.Errorf("port %d out of range", port)
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return nil, fmt.Errorf("invalid address %v", ip)
	}
	return sockaddr.FromAddrPort(netip.AddrPortFrom(addr, uint16(port))), nil
}
