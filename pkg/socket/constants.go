package socket

import (
	"strings"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	"golang.org/x/sys/unix"
)

var constants = map[string]int{
	"SOCK_DGRAM":     unix.SOCK_DGRAM,
	"SOCK_RAW":       unix.SOCK_RAW,
	"SOCK_RDM":       unix.SOCK_RDM,
	"SOCK_SEQPACKET": unix.SOCK_SEQPACKET,
	"SOCK_STREAM":    unix.SOCK_STREAM,

	"IPPROTO_ICMP":   unix.IPPROTO_ICMP,
	"IPPROTO_ICMPV6": unix.IPPROTO_ICMPV6,
	"IPPROTO_IGMP":   unix.IPPROTO_IGMP,
	"IPPROTO_TCP":    unix.IPPROTO_TCP,
	"IPPROTO_UDP":    unix.IPPROTO_UDP,

	"EACCES":          int(unix.EACCES),
	"EADDRINUSE":      int(unix.EADDRINUSE),
	"EADDRNOTAVAIL":   int(unix.EADDRNOTAVAIL),
	"EAFNOSUPPORT":    int(unix.EAFNOSUPPORT),
	"EAGAIN":          int(unix.EAGAIN),
	"EBADF":           int(unix.EBADF),
	"ECONNABORTED":    int(unix.ECONNABORTED),
	"ECONNREFUSED":    int(unix.ECONNREFUSED),
	"EDESTADDRREQ":    int(unix.EDESTADDRREQ),
	"EINVAL":          int(unix.EINVAL),
	"EINTR":           int(unix.EINTR),
	"EIO":             int(unix.EIO),
	"EISDIR":          int(unix.EISDIR),
	"ELOOP":           int(unix.ELOOP),
	"EMFILE":          int(unix.EMFILE),
	"ENAMETOOLONG":    int(unix.ENAMETOOLONG),
	"ENFILE":          int(unix.ENFILE),
	"ENOBUFS":         int(unix.ENOBUFS),
	"ENOENT":          int(unix.ENOENT),
	"ENOMEM":          int(unix.ENOMEM),
	"ENOTCONN":        int(unix.ENOTCONN),
	"ENOTDIR":         int(unix.ENOTDIR),
	"ENOTSOCK":        int(unix.ENOTSOCK),
	"EOPNOTSUPP":      int(unix.EOPNOTSUPP),
	"EPROTO":          int(unix.EPROTO),
	"EPROTONOSUPPORT": int(unix.EPROTONOSUPPORT),
	"EPROTOTYPE":      int(unix.EPROTOTYPE),
	"EROFS":           int(unix.EROFS),
	"EWOULDBLOCK":     int(unix.EWOULDBLOCK),

	"AI_ADDRCONFIG":               AI_ADDRCONFIG,
	"AI_ALL":                      AI_ALL,
	"AI_CANONIDN":                 AI_CANONIDN,
	"AI_CANONNAME":                AI_CANONNAME,
	"AI_IDN":                      AI_IDN,
	"AI_IDN_ALLOW_UNASSIGNED":     AI_IDN_ALLOW_UNASSIGNED,
	"AI_IDN_USE_STD3_ASCII_RULES": AI_IDN_USE_STD3_ASCII_RULES,
	"AI_NUMERICHOST":              AI_NUMERICHOST,
	"AI_NUMERICSERV":              AI_NUMERICSERV,
	"AI_PASSIVE":                  AI_PASSIVE,
	"AI_V4MAPPED":                 AI_V4MAPPED,

	"NI_DGRAM":                    NI_DGRAM,
	"NI_IDN":                      NI_IDN,
	"NI_IDN_ALLOW_UNASSIGNED":     NI_IDN_ALLOW_UNASSIGNED,
	"NI_IDN_USE_STD3_ASCII_RULES": NI_IDN_USE_STD3_ASCII_RULES,
	"NI_NAMEREQD":                 NI_NAMEREQD,
	"NI_NOFQDN":                   NI_NOFQDN,
	"NI_NUMERICHOST":              NI_NUMERICHOST,
	"NI_NUMERICSERV":              NI_NUMERICSERV,

	"EAI_ADDRFAMILY": EAI_ADDRFAMILY,
	"EAI_AGAIN":      EAI_AGAIN,
	"EAI_BADFLAGS":   EAI_BADFLAGS,
	"EAI_FAIL":       EAI_FAIL,
	"EAI_FAMILY":     EAI_FAMILY,
	"EAI_MEMORY":     EAI_MEMORY,
	"EAI_NODATA":     EAI_NODATA,
	"EAI_NONAME":     EAI_NONAME,
	"EAI_OVERFLOW":   EAI_OVERFLOW,
	"EAI_SERVICE":    EAI_SERVICE,
	"EAI_SOCKTYPE":   EAI_SOCKTYPE,
	"EAI_SYSTEM":     EAI_SYSTEM,

	"MSG_EOR":     unix.MSG_EOR,
	"MSG_OOB":     unix.MSG_OOB,
	"MSG_PEEK":    unix.MSG_PEEK,
	"MSG_WAITALL": unix.MSG_WAITALL,

	"SHUT_RD":   unix.SHUT_RD,
	"SHUT_RDWR": unix.SHUT_RDWR,
	"SHUT_WR":   unix.SHUT_WR,

	"SOL_SOCKET": unix.SOL_SOCKET,
}

func init() {
	for name, family := range sockaddr.Families() {
		constants[name] = int(family)
	}
	for opt, o := range socketOptions {
		constants[o.name] = opt
	}
}

// Constants returns the named numeric constants a caller needs to drive
// sockets: families, socket types, protocols, errno values, resolver flags
// and errors, message flags, shutdown modes and socket options. The map is
// a fresh copy.
func Constants() map[string]int {
	m := make(map[string]int, len(constants))
	for name, v := range constants {
		m[name] = v
	}
	return m
}

// Constant looks up one of the names returned by Constants, ignoring case.
func Constant(name string) (int, bool) {
	v, ok := constants[strings.ToUpper(name)]
	return v, ok
}
