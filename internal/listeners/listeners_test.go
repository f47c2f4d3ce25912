package listeners

import (
	"net/netip"
	"testing"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureFS(t *testing.T) procfs.FS {
	fs, err := procfs.NewFS("testdata/proc")
	require.NoError(t, err)
	return fs
}

func TestList(t *testing.T) {
	listeners, err := List(fixtureFS(t))
	require.NoError(t, err)

	type summary struct {
		protocol string
		addr     string
		inode    uint64
		uid      uint64
	}
	var got []summary
	for _, l := range listeners {
		got = append(got, summary{l.Protocol, l.AddrPort().String(), l.Inode, l.UID})
	}

	assert.Equal(t, []summary{
		{"tcp", "0.0.0.0:22", 12345, 0},
		{"tcp", "127.0.0.1:3306", 23456, 100},
		{"tcp6", "[::]:80", 56789, 33},
		{"tcp6", "[::1]:8080", 56790, 1000},
		{"udp", "127.0.0.53:53", 45679, 101},
		{"udp", "0.0.0.0:68", 45678, 0},
	}, got)
}

func TestListAddressForms(t *testing.T) {
	listeners, err := List(fixtureFS(t))
	require.NoError(t, err)
	require.NotEmpty(t, listeners)

	for _, l := range listeners {
		f, ok := sockaddr.Unpack(l.Addr)
		require.True(t, ok)
		assert.Equal(t, l.Fields, f)
	}

	mysql := listeners[1]
	assert.Len(t, mysql.Addr, sockaddr.SizeofInet4)
	assert.Equal(t, "127.0.0.1", mysql.Fields[sockaddr.FieldSinAddr])
	assert.Equal(t, uint16(3306), mysql.Fields[sockaddr.FieldSinPort])

	web := listeners[2]
	assert.Len(t, web.Addr, sockaddr.SizeofInet6)
	assert.Equal(t, "::", web.Fields[sockaddr.FieldSin6Addr])
}

func TestConflicts(t *testing.T) {
	testcases := []struct {
		desc     string
		local    string
		ip       string
		expected bool
	}{
		{desc: "wildcard", local: "0.0.0.0:22", ip: "192.0.2.1", expected: true},
		{desc: "v6 wildcard", local: "[::]:22", ip: "192.0.2.1", expected: true},
		{desc: "same address", local: "192.0.2.1:22", ip: "192.0.2.1", expected: true},
		{desc: "mapped address", local: "[::ffff:192.0.2.1]:22", ip: "192.0.2.1", expected: true},
		{desc: "other address", local: "127.0.0.1:22", ip: "192.0.2.1", expected: false},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			a := sockaddr.FromAddrPort(netip.MustParseAddrPort(tc.local))
			l := Listener{Addr: sockaddr.Encode(a)}
			assert.Equal(t, tc.expected, l.Conflicts(netip.MustParseAddr(tc.ip)))
		})
	}
}

func TestListMissingFiles(t *testing.T) {
	fs, err := procfs.NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = List(fs)
	assert.Error(t, err)
}
