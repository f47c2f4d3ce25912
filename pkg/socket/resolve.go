package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/internal/netif"
	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Resolver flags, as in <netdb.h>.
const (
	AI_PASSIVE                  = 0x0001
	AI_CANONNAME                = 0x0002
	AI_NUMERICHOST              = 0x0004
	AI_V4MAPPED                 = 0x0008
	AI_ALL                      = 0x0010
	AI_ADDRCONFIG               = 0x0020
	AI_IDN                      = 0x0040
	AI_CANONIDN                 = 0x0080
	AI_IDN_ALLOW_UNASSIGNED     = 0x0100
	AI_IDN_USE_STD3_ASCII_RULES = 0x0200
	AI_NUMERICSERV              = 0x0400

	NI_NUMERICHOST              = 1
	NI_NUMERICSERV              = 2
	NI_NOFQDN                   = 4
	NI_NAMEREQD                 = 8
	NI_DGRAM                    = 16
	NI_IDN                      = 32
	NI_IDN_ALLOW_UNASSIGNED     = 64
	NI_IDN_USE_STD3_ASCII_RULES = 128
)

// Resolver error codes, as in <netdb.h>.
const (
	EAI_BADFLAGS   = -1
	EAI_NONAME     = -2
	EAI_AGAIN      = -3
	EAI_FAIL       = -4
	EAI_NODATA     = -5
	EAI_FAMILY     = -6
	EAI_SOCKTYPE   = -7
	EAI_SERVICE    = -8
	EAI_ADDRFAMILY = -9
	EAI_MEMORY     = -10
	EAI_SYSTEM     = -11
	EAI_OVERFLOW   = -12
)

var gaiMessages = map[int]string{
	EAI_BADFLAGS:   "Bad value for ai_flags",
	EAI_NONAME:     "Name or service not known",
	EAI_AGAIN:      "Temporary failure in name resolution",
	EAI_FAIL:       "Non-recoverable failure in name resolution",
	EAI_NODATA:     "No address associated with hostname",
	EAI_FAMILY:     "ai_family not supported",
	EAI_SOCKTYPE:   "ai_socktype not supported",
	EAI_SERVICE:    "Servname not supported for ai_socktype",
	EAI_ADDRFAMILY: "Address family for hostname not supported",
	EAI_MEMORY:     "Memory allocation failure",
	EAI_SYSTEM:     "System error",
	EAI_OVERFLOW:   "Result too large for supplied buffer",
}

// GAIStrerror returns the message for a resolver error code.
func GAIStrerror(code int) string {
	if msg, ok := gaiMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error %d", code)
}

// A GAIError is a failed Resolve or NameInfo call.
type GAIError struct {
	Code int
	Err  error
}

func (e *GAIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", GAIStrerror(e.Code), e.Err)
	}
	return GAIStrerror(e.Code)
}

func (e *GAIError) Unwrap() error {
	return e.Err
}

// Hints restricts the results of Resolve. Zero values mean any.
type Hints struct {
	Flags    int
	Family   sockaddr.Family
	SockType int
	Protocol int
}

// AddrInfo is one result of Resolve.
type AddrInfo struct {
	Flags     int
	Family    sockaddr.Family
	SockType  int
	Protocol  int
	Addr      []byte
	Fields    sockaddr.Fields
	CanonName string // only set on the first result
}

type sockKind struct {
	sockType, protocol int
}

var sockKinds = []sockKind{
	{unix.SOCK_STREAM, unix.IPPROTO_TCP},
	{unix.SOCK_DGRAM, unix.IPPROTO_UDP},
	{unix.SOCK_RAW, 0},
}

// Resolve translates a host and a service into socket addresses, like
// getaddrinfo(3). Either node or service may be empty but not both. Host
// names go through the system resolver unless AI_NUMERICHOST is set.
func Resolve(ctx context.Context, node, service string, hints Hints) ([]AddrInfo, error) {
	if node == "" && service == "" {
		return nil, &GAIError{Code: EAI_NONAME}
	}
	if hints.Family != sockaddr.FamilyUnspec && hints.Family != sockaddr.FamilyInet && hints.Family != sockaddr.FamilyInet6 {
		return nil, &GAIError{Code: EAI_FAMILY}
	}

	kinds, err := matchKinds(hints, service != "")
	if err != nil {
		return nil, err
	}

	port, err := lookupService(ctx, service, hints.Flags, kinds[0])
	if err != nil {
		return nil, err
	}

	addrs, canon, err := lookupNode(ctx, node, hints)
	if err != nil {
		return nil, err
	}

	result := make([]AddrInfo, 0, len(addrs)*len(kinds))
	for _, addr := range addrs {
		a := inetAddress(addr, port)
		packed := sockaddr.Encode(a)
		for _, kind := range kinds {
			result = append(result, AddrInfo{
				Flags:    hints.Flags,
				Family:   a.Family(),
				SockType: kind.sockType,
				Protocol: kind.protocol,
				Addr:     packed,
				Fields:   sockaddr.ToFields(a),
			})
		}
	}
	result[0].CanonName = canon

	log.
		WithField("node", node).
		WithField("service", service).
		WithField("results", len(result)).
		Debug("Resolved address")
	return result, nil
}

func matchKinds(hints Hints, hasService bool) ([]sockKind, error) {
	var kinds []sockKind
	for _, kind := range sockKinds {
		if hints.SockType != 0 && hints.SockType != kind.sockType {
			continue
		}
		if kind.sockType == unix.SOCK_RAW {
			if hasService {
				continue
			}
			kind.protocol = hints.Protocol
		} else if hints.Protocol != 0 && hints.Protocol != kind.protocol {
			continue
		}
		kinds = append(kinds, kind)
	}

	if len(kinds) == 0 {
		if hasService && hints.SockType == unix.SOCK_RAW {
			return nil, &GAIError{Code: EAI_SERVICE}
		}
		return nil, &GAIError{Code: EAI_SOCKTYPE}
	}
	return kinds, nil
}

func lookupService(ctx context.Context, service string, flags int, kind sockKind) (uint16, error) {
	if service == "" {
		return 0, nil
	}
	if port, err := strconv.ParseUint(service, 10, 16); err == nil {
		return uint16(port), nil
	}
	if flags&AI_NUMERICSERV != 0 {
		return 0, &GAIError{Code: EAI_NONAME}
	}

	network := "tcp"
	if kind.sockType == unix.SOCK_DGRAM {
		network = "udp"
	}
	port, err := net.DefaultResolver.LookupPort(ctx, network, service)
	if err != nil {
		return 0, &GAIError{Code: EAI_SERVICE, Err: err}
	}
	return uint16(port), nil
}

func lookupNode(ctx context.Context, node string, hints Hints) ([]netip.Addr, string, error) {
	if node == "" {
		v4, v6 := netip.IPv4Unspecified(), netip.IPv6Unspecified()
		if hints.Flags&AI_PASSIVE == 0 {
			v4, v6 = netip.AddrFrom4([4]byte{127, 0, 0, 1}), netip.IPv6Loopback()
		}
		addrs := filterFamily([]netip.Addr{v4, v6}, hints, false)
		return addrs, "", nil
	}

	if addr, err := parseNumericHost(node); err == nil {
		addrs := filterFamily([]netip.Addr{addr}, hints, false)
		if len(addrs) == 0 {
			return nil, "", &GAIError{Code: EAI_ADDRFAMILY}
		}
		var canon string
		if hints.Flags&AI_CANONNAME != 0 {
			canon = node
		}
		return addrs, canon, nil
	}
	if hints.Flags&AI_NUMERICHOST != 0 {
		return nil, "", &GAIError{Code: EAI_NONAME}
	}

	network := "ip"
	switch hints.Family {
	case sockaddr.FamilyInet:
		network = "ip4"
	case sockaddr.FamilyInet6:
		if hints.Flags&AI_V4MAPPED == 0 {
			network = "ip6"
		}
	}

	found, err := net.DefaultResolver.LookupNetIP(ctx, network, node)
	if err != nil {
		return nil, "", resolverError(err)
	}
	addrs := filterFamily(found, hints, true)
	if len(addrs) == 0 {
		return nil, "", &GAIError{Code: EAI_NODATA}
	}

	var canon string
	if hints.Flags&AI_CANONNAME != 0 {
		canon = node
		if cname, err := net.DefaultResolver.LookupCNAME(ctx, node); err == nil {
			canon = strings.TrimSuffix(cname, ".")
		}
	}
	return addrs, canon, nil
}

// parseNumericHost parses an address literal. A zone names an interface
// or is a decimal scope id.
func parseNumericHost(node string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(node)
	if err != nil {
		return netip.Addr{}, err
	}
	if zone := addr.Zone(); zone != "" {
		id, err := netif.Current().ScopeID(zone)
		if err != nil {
			return netip.Addr{}, err
		}
		addr = addr.WithZone(strconv.FormatUint(uint64(id), 10))
	}
	return addr, nil
}

// filterFamily keeps the addresses hints allow. IPv4-mapped addresses are
// unmapped when they came from the resolver, which reports IPv4 records in
// that form, or when hints ask for IPv4. A mapped literal otherwise stays
// IPv6.
func filterFamily(addrs []netip.Addr, hints Hints, resolved bool) []netip.Addr {
	var result []netip.Addr
	for _, addr := range addrs {
		if addr.Is4In6() && (resolved || hints.Family == sockaddr.FamilyInet) {
			addr = addr.Unmap()
		}
		switch hints.Family {
		case sockaddr.FamilyInet:
			if !addr.Is4() {
				continue
			}
		case sockaddr.FamilyInet6:
			if addr.Is4() {
				if hints.Flags&AI_V4MAPPED == 0 {
					continue
				}
				addr = netip.AddrFrom16(addr.As16())
			}
		}
		result = append(result, addr)
	}
	return result
}

// inetAddress builds the address variant for addr. A decimal zone becomes
// the scope id.
func inetAddress(addr netip.Addr, port uint16) sockaddr.Address {
	if addr.Is4() {
		return &sockaddr.Inet4{Port: port, Addr: addr.As4()}
	}
	a := &sockaddr.Inet6{Port: port, Addr: addr.As16()}
	if id, err := strconv.ParseUint(addr.Zone(), 10, 32); err == nil {
		a.ScopeID = uint32(id)
	}
	return a
}

func resolverError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return &GAIError{Code: EAI_NONAME, Err: err}
		case dnsErr.IsTemporary || dnsErr.IsTimeout:
			return &GAIError{Code: EAI_AGAIN, Err: err}
		}
	}
	return &GAIError{Code: EAI_FAIL, Err: err}
}

// NameInfo translates a packed IPv4 or IPv6 address into a host and a
// service, like getnameinfo(3). The service is always the decimal port.
func NameInfo(ctx context.Context, addr []byte, flags int) (host, service string, err error) {
	a, err := sockaddr.Decode(addr)
	if err != nil {
		return "", "", &GAIError{Code: EAI_FAMILY, Err: err}
	}

	var ip netip.Addr
	var scope uint32
	switch a := a.(type) {
	case *sockaddr.Inet4:
		ip = netip.AddrFrom4(a.Addr)
		service = strconv.Itoa(int(a.Port))
	case *sockaddr.Inet6:
		ip = netip.AddrFrom16(a.Addr)
		scope = a.ScopeID
		service = strconv.Itoa(int(a.Port))
	default:
		return "", "", &GAIError{Code: EAI_FAMILY}
	}

	if flags&NI_NUMERICHOST == 0 {
		names, err := net.DefaultResolver.LookupAddr(ctx, ip.String())
		if err == nil && len(names) > 0 {
			host = strings.TrimSuffix(names[0], ".")
			if flags&NI_NOFQDN != 0 {
				host, _, _ = strings.Cut(host, ".")
			}
			return host, service, nil
		}
		if flags&NI_NAMEREQD != 0 {
			if err == nil {
				err = fmt.Errorf("no name for %s", ip)
			}
			return "", "", &GAIError{Code: EAI_NONAME, Err: err}
		}
	}

	if scope != 0 {
		zone, err := netif.Current().InterfaceName(scope)
		if err != nil {
			zone = strconv.FormatUint(uint64(scope), 10)
		}
		ip = ip.WithZone(zone)
	}
	return ip.String(), service, nil
}
