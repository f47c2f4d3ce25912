// Package sockaddr converts socket addresses between their structured form,
// a record of named fields as a dynamic host runtime sees it, and the fixed
// binary layout the kernel expects for bind, connect, sendto and friends.
//
// The binary form is a tagged union: the family tag at offset 0 selects one
// of the Address variants, and each variant knows its own size and layout.
package sockaddr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/josharian/native"
)

// An Address is one of *Inet4, *Inet6, *Unix or *Unspecified.
type Address interface {
	// Family returns the tag stored at offset 0 of the encoded form.
	Family() Family

	size() int
	put(b []byte)
	get(b []byte)
	fields(f Fields)
}

// Inet4 is a struct sockaddr_in.
type Inet4 struct {
	Port uint16
	Addr [4]byte
}

func (a *Inet4) Family() Family { return FamilyInet }
func (a *Inet4) size() int      { return SizeofInet4 }

func (a *Inet4) put(b []byte) {
	binary.BigEndian.PutUint16(b[offPort:], a.Port)
	copy(b[offInet4Addr:], a.Addr[:])
}

func (a *Inet4) get(b []byte) {
	a.Port = binary.BigEndian.Uint16(b[offPort:])
	copy(a.Addr[:], b[offInet4Addr:])
}

func (a *Inet4) fields(f Fields) {
	f[FieldSinFamily] = FamilyInet
	f[FieldSinPort] = a.Port
	f[FieldSinAddr] = netip.AddrFrom4(a.Addr).String()
}

// AddrPort returns the address as a netip.AddrPort.
func (a *Inet4) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), a.Port)
}

// Inet6 is a struct sockaddr_in6.
type Inet6 struct {
	Port     uint16
	FlowInfo uint32
	Addr     [16]byte
	ScopeID  uint32
}

func (a *Inet6) Family() Family { return FamilyInet6 }
func (a *Inet6) size() int      { return SizeofInet6 }

func (a *Inet6) put(b []byte) {
	binary.BigEndian.PutUint16(b[offPort:], a.Port)
	binary.BigEndian.PutUint32(b[offFlowInfo:], a.FlowInfo)
	copy(b[offInet6Addr:], a.Addr[:])
	binary.BigEndian.PutUint32(b[offScopeID:], a.ScopeID)
}

func (a *Inet6) get(b []byte) {
	a.Port = binary.BigEndian.Uint16(b[offPort:])
	a.FlowInfo = binary.BigEndian.Uint32(b[offFlowInfo:])
	copy(a.Addr[:], b[offInet6Addr:])
	a.ScopeID = binary.BigEndian.Uint32(b[offScopeID:])
}

func (a *Inet6) fields(f Fields) {
	f[FieldSin6Family] = FamilyInet6
	f[FieldSin6Port] = a.Port
	f[FieldSin6FlowInfo] = a.FlowInfo
	f[FieldSin6ScopeID] = a.ScopeID
	f[FieldSin6Addr] = netip.AddrFrom16(a.Addr).String()
}

// AddrPort returns the address as a netip.AddrPort. The scope id is not
// carried over as a zone; callers that need it resolve the interface name
// themselves.
func (a *Inet6) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), a.Port)
}

// Unix is a struct sockaddr_un. Path keeps its full fixed size; trailing
// zero bytes are part of the value.
type Unix struct {
	Path [SizeofPath]byte
}

// NewUnix returns a Unix address for path. A leading '@' names an abstract
// socket and is stored as a leading zero byte.
func NewUnix(path string) (*Unix, error) {
	if len(path) > SizeofPath {
		return nil, fmt.Errorf("%w: path is %d bytes, sun_path holds %d", ErrFieldTooLong, len(path), SizeofPath)
	}
	var a Unix
	copy(a.Path[:], path)
	if len(path) > 0 && path[0] == '@' {
		a.Path[0] = 0
	}
	return &a, nil
}

func (a *Unix) Family() Family { return FamilyUnix }
func (a *Unix) size() int      { return SizeofUnix }

func (a *Unix) put(b []byte) {
	copy(b[offPath:], a.Path[:])
}

func (a *Unix) get(b []byte) {
	copy(a.Path[:], b[offPath:])
}

func (a *Unix) fields(f Fields) {
	f[FieldSunFamily] = FamilyUnix
	f[FieldSunPath] = string(a.Path[:])
}

// Name returns the path in the form the standard library uses: cut at the
// first zero byte, or '@' followed by the name for abstract sockets.
func (a *Unix) Name() string {
	if a.Path[0] == 0 {
		name := bytes.TrimRight(a.Path[1:], "\x00")
		if len(name) == 0 {
			return ""
		}
		return "@" + string(name)
	}
	if i := bytes.IndexByte(a.Path[:], 0); i >= 0 {
		return string(a.Path[:i])
	}
	return string(a.Path[:])
}

// Unspecified is any family this package has no dedicated layout for. It
// occupies a full struct sockaddr_storage.
type Unspecified struct {
	Tag  Family
	Data [SizeofStorage - SizeofFamily]byte
}

func (a *Unspecified) Family() Family { return a.Tag }
func (a *Unspecified) size() int      { return SizeofStorage }

func (a *Unspecified) put(b []byte) {
	copy(b[offData:], a.Data[:])
}

func (a *Unspecified) get(b []byte) {
	copy(a.Data[:], b[offData:])
}

func (a *Unspecified) fields(Fields) {}

// newAddress returns an empty variant for the family tag.
func newAddress(family Family) Address {
	switch family {
	case FamilyInet:
		return new(Inet4)
	case FamilyInet6:
		return new(Inet6)
	case FamilyUnix:
		return new(Unix)
	default:
		return &Unspecified{Tag: family}
	}
}

// Encode returns the binary form of a. The result is exactly as long as the
// structure for a's family.
func Encode(a Address) []byte {
	b := make([]byte, SizeofStorage)
	native.Endian.PutUint16(b, uint16(a.Family()))
	a.put(b)
	return b[:a.size()]
}

// Decode parses the binary form of an address. It returns ErrTruncated if b
// cannot hold the family tag or the structure the tag selects.
func Decode(b []byte) (Address, error) {
	if len(b) < SizeofFamily {
		return nil, fmt.Errorf("%w: %d bytes, family tag needs %d", ErrTruncated, len(b), SizeofFamily)
	}

	family := Family(native.Endian.Uint16(b))
	a := newAddress(family)
	if len(b) < a.size() {
		return nil, fmt.Errorf("%w: %d bytes, %s needs %d", ErrTruncated, len(b), family, a.size())
	}

	a.get(b)
	return a, nil
}

// FromAddrPort returns the Inet4 or Inet6 variant for ap. IPv4-mapped IPv6
// addresses stay IPv6.
func FromAddrPort(ap netip.AddrPort) Address {
	addr := ap.Addr()
	if addr.Is4() {
		return &Inet4{Port: ap.Port(), Addr: addr.As4()}
	}
	return &Inet6{Port: ap.Port(), Addr: addr.As16()}
}
