package sockaddr

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/josharian/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackInet4(t *testing.T) {
	b, err := Pack(Fields{
		FieldSinFamily: FamilyInet,
		FieldSinPort:   80,
		FieldSinAddr:   "127.0.0.1",
	})
	require.NoError(t, err)

	expected := tagged(FamilyInet, SizeofInet4)
	copy(expected[2:], []byte{0, 80, 127, 0, 0, 1})
	assert.Equal(t, expected, b)

	if !native.IsBigEndian {
		assert.Equal(t, []byte{2, 0, 0, 80, 127, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}, b)
	}
}

func TestPackResolvesFamily(t *testing.T) {
	testcases := []struct {
		desc     string
		fields   Fields
		expected Family
		size     int
	}{
		{
			desc:     "empty record",
			fields:   Fields{},
			expected: FamilyUnspec,
			size:     SizeofStorage,
		},
		{
			desc:     "sin_family after ss_family",
			fields:   Fields{FieldSSFamily: FamilyUnix, FieldSinFamily: FamilyInet},
			expected: FamilyInet,
			size:     SizeofInet4,
		},
		{
			desc:     "sun_family after sin6_family",
			fields:   Fields{FieldSin6Family: FamilyInet6, FieldSunFamily: FamilyUnix},
			expected: FamilyUnix,
			size:     SizeofUnix,
		},
		{
			desc:     "family by name",
			fields:   Fields{FieldSaFamily: "AF_INET6"},
			expected: FamilyInet6,
			size:     SizeofInet6,
		},
		{
			desc:     "numeric string",
			fields:   Fields{FieldSaFamily: "2"},
			expected: FamilyInet,
			size:     SizeofInet4,
		},
		{
			desc:     "unknown family",
			fields:   Fields{FieldSaFamily: 99},
			expected: 99,
			size:     SizeofStorage,
		},
		{
			desc:     "nil family is skipped",
			fields:   Fields{FieldSinFamily: FamilyInet, FieldSunFamily: nil},
			expected: FamilyInet,
			size:     SizeofInet4,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := Pack(tc.fields)
			require.NoError(t, err)
			assert.Len(t, b, tc.size)
			assert.Equal(t, uint16(tc.expected), native.Endian.Uint16(b))
		})
	}
}

func TestPackErrors(t *testing.T) {
	testcases := []struct {
		desc     string
		fields   Fields
		field    string
		expected error
	}{
		{
			desc:     "malformed IPv4",
			fields:   Fields{FieldSinFamily: FamilyInet, FieldSinAddr: "999.999.999.999"},
			field:    FieldSinAddr,
			expected: ErrInvalidAddress,
		},
		{
			desc:     "IPv6 text in sin_addr",
			fields:   Fields{FieldSinAddr: "::1"},
			field:    FieldSinAddr,
			expected: ErrInvalidAddress,
		},
		{
			desc:     "IPv4 text in sin6_addr",
			fields:   Fields{FieldSin6Addr: "127.0.0.1"},
			field:    FieldSin6Addr,
			expected: ErrInvalidAddress,
		},
		{
			desc:     "zoned IPv6",
			fields:   Fields{FieldSin6Addr: "fe80::1%eth0"},
			field:    FieldSin6Addr,
			expected: ErrInvalidAddress,
		},
		{
			desc:     "address not a string",
			fields:   Fields{FieldSinAddr: 2130706433},
			field:    FieldSinAddr,
			expected: ErrWrongType,
		},
		{
			desc:     "port too large",
			fields:   Fields{FieldSinPort: 70000},
			field:    FieldSinPort,
			expected: ErrOutOfRange,
		},
		{
			desc:     "negative port",
			fields:   Fields{FieldSin6Port: -1},
			field:    FieldSin6Port,
			expected: ErrOutOfRange,
		},
		{
			desc:     "port not numeric",
			fields:   Fields{FieldSinPort: "http"},
			field:    FieldSinPort,
			expected: ErrWrongType,
		},
		{
			desc:     "bool port",
			fields:   Fields{FieldSinPort: true},
			field:    FieldSinPort,
			expected: ErrWrongType,
		},
		{
			desc:     "flowinfo too large",
			fields:   Fields{FieldSin6FlowInfo: uint64(1 << 32)},
			field:    FieldSin6FlowInfo,
			expected: ErrOutOfRange,
		},
		{
			desc:     "unknown family name",
			fields:   Fields{FieldSaFamily: "AF_NOPE"},
			field:    FieldSaFamily,
			expected: ErrWrongType,
		},
		{
			desc:     "sun_path too long",
			fields:   Fields{FieldSunFamily: FamilyUnix, FieldSunPath: strings.Repeat("x", SizeofPath+1)},
			field:    FieldSunPath,
			expected: ErrFieldTooLong,
		},
		{
			desc:     "sa_data too long",
			fields:   Fields{FieldSaData: make([]byte, SizeofData+1)},
			field:    FieldSaData,
			expected: ErrFieldTooLong,
		},
		{
			desc:     "sun_path not bytes",
			fields:   Fields{FieldSunPath: 42},
			field:    FieldSunPath,
			expected: ErrWrongType,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := Pack(tc.fields)
			assert.Nil(t, b)
			require.ErrorIs(t, err, tc.expected)

			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tc.field, fieldErr.Field)
		})
	}
}

func TestPackIgnoresOtherVariants(t *testing.T) {
	b, err := Pack(Fields{
		FieldSinFamily: FamilyInet,
		FieldSinPort:   53,
		FieldSinAddr:   "10.0.0.1",
		FieldSin6Port:  8080,
		FieldSunPath:   "/tmp/ignored",
		FieldSaData:    "ignored",
	})
	require.NoError(t, err)

	expected, err := Pack(Fields{
		FieldSinFamily: FamilyInet,
		FieldSinPort:   53,
		FieldSinAddr:   "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, expected, b)
}

func TestPackUnspecifiedData(t *testing.T) {
	b, err := Pack(Fields{FieldSaFamily: FamilyAppleTalk, FieldSaData: "abc"})
	require.NoError(t, err)
	require.Len(t, b, SizeofStorage)

	assert.Equal(t, []byte("abc"), b[2:5])
	assert.Equal(t, make([]byte, SizeofStorage-5), b[5:])
}

func TestUnpackZeroInet4(t *testing.T) {
	f, ok := Unpack(tagged(FamilyInet, SizeofInet4))
	require.True(t, ok)

	assert.Equal(t, Fields{
		FieldSSFamily:  FamilyInet,
		FieldSaFamily:  FamilyInet,
		FieldSaData:    string(make([]byte, SizeofData)),
		FieldSinFamily: FamilyInet,
		FieldSinPort:   uint16(0),
		FieldSinAddr:   "0.0.0.0",
	}, f)
}

func TestUnpackShort(t *testing.T) {
	testcases := []struct {
		desc  string
		input []byte
	}{
		{desc: "empty", input: []byte{}},
		{desc: "tag only", input: []byte{2}},
		{desc: "inet", input: tagged(FamilyInet, SizeofInet4-1)},
		{desc: "inet6", input: tagged(FamilyInet6, SizeofInet6-1)},
		{desc: "unix", input: tagged(FamilyUnix, SizeofUnix-1)},
		{desc: "unspec", input: tagged(FamilyUnspec, SizeofInet4)},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			f, ok := Unpack(tc.input)
			assert.False(t, ok)
			assert.Nil(t, f)
		})
	}
}

func TestUnpackUnknownFamily(t *testing.T) {
	b := tagged(99, SizeofStorage)
	copy(b[2:], "abcdefghijklmnopq")

	f, ok := Unpack(b)
	require.True(t, ok)
	assert.Equal(t, Fields{
		FieldSSFamily: Family(99),
		FieldSaFamily: Family(99),
		FieldSaData:   "abcdefghijklmn",
	}, f)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	testcases := []struct {
		desc   string
		fields Fields
	}{
		{
			desc: "inet",
			fields: Fields{
				FieldSinFamily: FamilyInet,
				FieldSinPort:   uint16(8080),
				FieldSinAddr:   "192.0.2.7",
			},
		},
		{
			desc: "inet6",
			fields: Fields{
				FieldSin6Family:   FamilyInet6,
				FieldSin6Port:     uint16(443),
				FieldSin6FlowInfo: uint32(0x12345),
				FieldSin6Addr:     "2001:db8::42",
				FieldSin6ScopeID:  uint32(7),
			},
		},
		{
			desc: "unix",
			fields: Fields{
				FieldSunFamily: FamilyUnix,
				FieldSunPath:   "/run/app.sock",
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := Pack(tc.fields)
			require.NoError(t, err)

			f, ok := Unpack(b)
			require.True(t, ok)

			for name, v := range tc.fields {
				if name == FieldSunPath {
					assert.Equal(t, v, strings.TrimRight(f[name].(string), "\x00"))
					continue
				}
				assert.Equal(t, v, f[name], name)
			}

			again, err := Pack(f)
			require.NoError(t, err)
			assert.Equal(t, b, again)
		})
	}
}

func TestUnpackUnixKeepsTrailingZeros(t *testing.T) {
	b, err := Pack(Fields{FieldSunFamily: FamilyUnix, FieldSunPath: "/tmp/s"})
	require.NoError(t, err)

	f, ok := Unpack(b)
	require.True(t, ok)

	path := f[FieldSunPath].(string)
	assert.Len(t, path, SizeofPath)
	assert.True(t, strings.HasPrefix(path, "/tmp/s\x00"))
}

func TestPackDecodedJSON(t *testing.T) {
	var f Fields
	require.NoError(t, json.Unmarshal([]byte(`{
		"sin6_family": "AF_INET6",
		"sin6_port": 8443,
		"sin6_addr": "::1",
		"sin6_scope_id": 1
	}`), &f))

	b, err := Pack(f)
	require.NoError(t, err)

	a, err := Decode(b)
	require.NoError(t, err)
	require.IsType(t, &Inet6{}, a)

	in6 := a.(*Inet6)
	assert.Equal(t, uint16(8443), in6.Port)
	assert.Equal(t, uint32(1), in6.ScopeID)
	assert.Equal(t, "[::1]:8443", in6.AddrPort().String())
}

func TestToFields(t *testing.T) {
	f := ToFields(&Inet4{Port: 22, Addr: [4]byte{10, 1, 2, 3}})
	assert.Equal(t, "10.1.2.3", f[FieldSinAddr])
	assert.Equal(t, uint16(22), f[FieldSinPort])

	a, err := FromFields(f)
	require.NoError(t, err)
	assert.Equal(t, &Inet4{Port: 22, Addr: [4]byte{10, 1, 2, 3}}, a)
}

func TestUnpackJSONRoundTrip(t *testing.T) {
	testcases := []struct {
		desc   string
		fields Fields
		family string
	}{
		{
			desc: "IPv4 with high octets",
			fields: Fields{
				FieldSinFamily: FamilyInet,
				FieldSinPort:   80,
				FieldSinAddr:   "192.168.1.1",
			},
			family: `"sin_family":"AF_INET"`,
		},
		{
			desc: "IPv6 documentation prefix",
			fields: Fields{
				FieldSin6Family:  FamilyInet6,
				FieldSin6Port:    53,
				FieldSin6Addr:    "2001:db8::53",
				FieldSin6ScopeID: 2,
			},
			family: `"sin6_family":"AF_INET6"`,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := Pack(tc.fields)
			require.NoError(t, err)

			f, ok := Unpack(b)
			require.True(t, ok)

			// sa_data holds bytes that are not valid UTF-8 and comes back
			// longer than the field.
			text, err := json.Marshal(f)
			require.NoError(t, err)
			assert.Contains(t, string(text), tc.family)

			var decoded Fields
			require.NoError(t, json.Unmarshal(text, &decoded))
			assert.Greater(t, len(decoded[FieldSaData].(string)), SizeofData)

			again, err := Pack(decoded)
			require.NoError(t, err)
			assert.Equal(t, b, again)
		})
	}
}

func TestPackSaDataDoesNotOverlay(t *testing.T) {
	b, err := Pack(Fields{
		FieldSaFamily: FamilyInet,
		FieldSaData:   "\x00P\x7f\x00\x00\x01",
	})
	require.NoError(t, err)
	assert.Equal(t, tagged(FamilyInet, SizeofInet4), b)

	b, err = Pack(Fields{
		FieldSunFamily: FamilyUnix,
		FieldSaData:    "/tmp/x",
	})
	require.NoError(t, err)
	assert.Equal(t, tagged(FamilyUnix, SizeofUnix), b)
}

func TestPackSaDataLength(t *testing.T) {
	long := strings.Repeat("x", SizeofData+1)

	_, err := Pack(Fields{FieldSinFamily: FamilyInet, FieldSaData: long})
	assert.NoError(t, err)

	_, err = Pack(Fields{FieldSaFamily: FamilyIPX, FieldSaData: long})
	require.ErrorIs(t, err, ErrFieldTooLong)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, FieldSaData, fieldErr.Field)

	_, err = Pack(Fields{FieldSinFamily: FamilyInet, FieldSaData: 7})
	assert.ErrorIs(t, err, ErrWrongType)
}
