// Package netif looks up network interfaces and their addresses over
// netlink, optionally inside another network namespace.
package netif

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

var ErrNoInterface = errors.New("no such network interface")

// Interface identifies a network interface.
type Interface struct {
	Index int
	Name  string
}

// A Handle issues netlink requests in one network namespace.
type Handle struct {
	nl *netlink.Handle
}

// current uses the namespace of the calling thread, as the netlink package
// level functions do.
var current = &Handle{nl: &netlink.Handle{}}

// Current returns a Handle for the namespace of the calling thread. It must
// not be closed.
func Current() *Handle {
	return current
}

// Open returns a Handle for the named network namespace. An empty name opens
// the namespace of the caller.
func Open(namespace string) (*Handle, error) {
	if namespace == "" {
		nl, err := netlink.NewHandle()
		if err != nil {
			return nil, fmt.Errorf("get netlink handle: %w", err)
		}
		return &Handle{nl: nl}, nil
	}

	ns, err := netns.GetFromName(namespace)
	if err != nil {
		return nil, fmt.Errorf("open network namespace %s: %w", namespace, err)
	}
	defer ns.Close()

	nl, err := netlink.NewHandleAt(ns)
	if err != nil {
		return nil, fmt.Errorf("get netlink handle for %s: %w", namespace, err)
	}
	return &Handle{nl: nl}, nil
}

// Close releases the netlink sockets of the handle.
func (h *Handle) Close() {
	h.nl.Close()
}

// ScopeID returns the IPv6 scope id for an interface name. A decimal name is
// taken as the scope id itself.
func (h *Handle) ScopeID(name string) (uint32, error) {
	if id, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(id), nil
	}

	link, err := h.nl.LinkByName(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrNoInterface, name, err)
	}
	return uint32(link.Attrs().Index), nil
}

// InterfaceName returns the name of the interface with the given index.
func (h *Handle) InterfaceName(scopeID uint32) (string, error) {
	link, err := h.nl.LinkByIndex(int(scopeID))
	if err != nil {
		return "", fmt.Errorf("%w: index %d: %w", ErrNoInterface, scopeID, err)
	}
	return link.Attrs().Name, nil
}

// DefaultListenIP returns the source address the kernel would use to reach
// the internet.
func (h *Handle) DefaultListenIP() (netip.Addr, error) {
	routes, err := h.nl.RouteGet(net.ParseIP("1.1.1.1"))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("getting route to 1.1.1.1: %w", err)
	}

	if len(routes) == 0 {
		return netip.Addr{}, fmt.Errorf("no default route found")
	}

	addr, ok := netip.AddrFromSlice(routes[0].Src)
	if !ok {
		return netip.Addr{}, fmt.Errorf("default route has no source address")
	}
	return addr.Unmap(), nil
}

// InterfaceOfAddress returns the interface that has the given address
// assigned.
func (h *Handle) InterfaceOfAddress(addr netip.Addr) (*Interface, error) {
	addrs, err := h.nl.AddrList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("could not get addresses: %w", err)
	}

	want := addr.Unmap().WithZone("")
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		ifaceAddr, ok := netip.AddrFromSlice(a.IP)
		if !ok || ifaceAddr.Unmap() != want {
			continue
		}

		link, err := h.nl.LinkByIndex(a.LinkIndex)
		if err != nil {
			return nil, fmt.Errorf("could not get interface %d: %w", a.LinkIndex, err)
		}
		return &Interface{Index: a.LinkIndex, Name: link.Attrs().Name}, nil
	}
	return nil, fmt.Errorf("%w: no network interface found with address %s", ErrNoInterface, addr)
}
