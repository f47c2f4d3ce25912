package sockaddr

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cast"
)

// Fields is the structured form of an address: C member names mapped to
// values. Numbers may be of any Go numeric type, byte strings are string or
// []byte, and IP addresses are in presentation format.
type Fields map[string]any

const (
	FieldSSFamily     = "ss_family"
	FieldSaFamily     = "sa_family"
	FieldSaData       = "sa_data"
	FieldSinFamily    = "sin_family"
	FieldSinPort      = "sin_port"
	FieldSinAddr      = "sin_addr"
	FieldSin6Family   = "sin6_family"
	FieldSin6Port     = "sin6_port"
	FieldSin6FlowInfo = "sin6_flowinfo"
	FieldSin6Addr     = "sin6_addr"
	FieldSin6ScopeID  = "sin6_scope_id"
	FieldSunFamily    = "sun_family"
	FieldSunPath      = "sun_path"
)

// draft collects the fields of every variant while a record is walked. The
// family tag picks which one becomes the Address.
type draft struct {
	family Family
	data   []byte
	in4    Inet4
	in6    Inet6
	un     Unix
}

type fieldSetter struct {
	name string
	set  func(d *draft, v any) error
}

// fieldSetters is walked in order, so the last family field present wins.
var fieldSetters = []fieldSetter{
	{FieldSSFamily, setFamily},
	{FieldSaFamily, setFamily},
	{FieldSaData, func(d *draft, v any) error { return setRawBytes(&d.data, v) }},
	{FieldSinFamily, setFamily},
	{FieldSinPort, func(d *draft, v any) error { return setUint16(&d.in4.Port, v) }},
	{FieldSinAddr, func(d *draft, v any) error { return setInet4Addr(&d.in4.Addr, v) }},
	{FieldSin6Family, setFamily},
	{FieldSin6Port, func(d *draft, v any) error { return setUint16(&d.in6.Port, v) }},
	{FieldSin6FlowInfo, func(d *draft, v any) error { return setUint32(&d.in6.FlowInfo, v) }},
	{FieldSin6Addr, func(d *draft, v any) error { return setInet6Addr(&d.in6.Addr, v) }},
	{FieldSin6ScopeID, func(d *draft, v any) error { return setUint32(&d.in6.ScopeID, v) }},
	{FieldSunFamily, setFamily},
	{FieldSunPath, func(d *draft, v any) error { return setBytes(d.un.Path[:], v) }},
}

func (d *draft) address() Address {
	switch d.family {
	case FamilyInet:
		a := d.in4
		return &a
	case FamilyInet6:
		a := d.in6
		return &a
	case FamilyUnix:
		a := d.un
		return &a
	default:
		return &Unspecified{Tag: d.family}
	}
}

// FromFields builds an Address from its structured form. Every recognized
// field is type checked even if the resolved family does not use it. Fields
// of other families do not reach the result, and sa_data only reaches the
// Unspecified variant: it never overlays the port, address or path of a
// known family. The length of sa_data is checked only when it is used.
func FromFields(f Fields) (Address, error) {
	var d draft
	for _, setter := range fieldSetters {
		v, ok := f[setter.name]
		if !ok || v == nil {
			continue
		}
		if err := setter.set(&d, v); err != nil {
			return nil, &FieldError{Field: setter.name, Err: err}
		}
	}

	a := d.address()
	if u, ok := a.(*Unspecified); ok {
		if err := setBytes(u.Data[:SizeofData], d.data); err != nil {
			return nil, &FieldError{Field: FieldSaData, Err: err}
		}
	}
	return a, nil
}

// ToFields returns the structured form of a, as Unpack would produce it for
// Encode(a).
func ToFields(a Address) Fields {
	return unpackAddress(a, Encode(a))
}

// Pack encodes a structured address into its binary form.
func Pack(f Fields) ([]byte, error) {
	a, err := FromFields(f)
	if err != nil {
		return nil, err
	}
	return Encode(a), nil
}

// Unpack decodes a binary address into its structured form. It reports false
// without an error if b is too short for the family tag or for the structure
// the tag selects.
func Unpack(b []byte) (Fields, bool) {
	a, err := Decode(b)
	if err != nil {
		return nil, false
	}
	return unpackAddress(a, b), true
}

func unpackAddress(a Address, b []byte) Fields {
	// 5 fields in sockaddr_in6 plus the generic ones.
	f := make(Fields, 8)
	f[FieldSSFamily] = a.Family()
	f[FieldSaFamily] = a.Family()
	f[FieldSaData] = string(b[offData : offData+SizeofData])
	a.fields(f)
	return f
}

func setFamily(d *draft, v any) error {
	if name, ok := v.(string); ok {
		if family, err := ParseFamily(name); err == nil {
			d.family = family
			return nil
		}
	}
	n, err := toUnsigned(v, 1<<16-1)
	if err != nil {
		return err
	}
	d.family = Family(n)
	return nil
}

func setUint16(dst *uint16, v any) error {
	n, err := toUnsigned(v, 1<<16-1)
	if err != nil {
		return err
	}
	*dst = uint16(n)
	return nil
}

func setUint32(dst *uint32, v any) error {
	n, err := toUnsigned(v, 1<<32-1)
	if err != nil {
		return err
	}
	*dst = uint32(n)
	return nil
}

// setRawBytes keeps a byte string whose length is checked later.
func setRawBytes(dst *[]byte, v any) error {
	switch v := v.(type) {
	case string:
		*dst = []byte(v)
	case []byte:
		*dst = v
	default:
		return fmt.Errorf("%w: want a byte string, got %T", ErrWrongType, v)
	}
	return nil
}

func setBytes(dst []byte, v any) error {
	var src []byte
	if err := setRawBytes(&src, v); err != nil {
		return err
	}
	if len(src) > len(dst) {
		return fmt.Errorf("%w: %d bytes, field holds %d", ErrFieldTooLong, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func setInet4Addr(dst *[4]byte, v any) error {
	addr, err := parseAddr(v)
	if err != nil {
		return err
	}
	if !addr.Is4() {
		return fmt.Errorf("%w (AF_INET): %q", ErrInvalidAddress, v)
	}
	*dst = addr.As4()
	return nil
}

func setInet6Addr(dst *[16]byte, v any) error {
	addr, err := parseAddr(v)
	if err != nil {
		return err
	}
	if !addr.Is6() || addr.Zone() != "" {
		return fmt.Errorf("%w (AF_INET6): %q", ErrInvalidAddress, v)
	}
	*dst = addr.As16()
	return nil
}

func parseAddr(v any) (netip.Addr, error) {
	s, ok := v.(string)
	if !ok {
		return netip.Addr{}, fmt.Errorf("%w: want an address string, got %T", ErrWrongType, v)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return addr, nil
}

// toUnsigned converts a dynamic numeric value. Numeric strings are accepted
// and fractions are truncated, as a scripting host would coerce them.
func toUnsigned(v any, limit uint64) (uint64, error) {
	var n int64
	switch v := v.(type) {
	case bool:
		return 0, fmt.Errorf("%w: want a number, got bool", ErrWrongType)
	case Family:
		n = int64(v)
	case uint64:
		if v > limit {
			return 0, fmt.Errorf("%w: %d > %d", ErrOutOfRange, v, limit)
		}
		return v, nil
	default:
		var err error
		if n, err = cast.ToInt64E(v); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrWrongType, err)
		}
	}
	if n < 0 || uint64(n) > limit {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, n, limit)
	}
	return uint64(n), nil
}
