package sockaddr

import "golang.org/x/sys/unix"

// Sizes of the kernel address structures. The family tag is an unsigned
// short in host byte order at offset 0 of every structure.
const (
	SizeofFamily  = 2
	SizeofInet4   = unix.SizeofSockaddrInet4
	SizeofInet6   = unix.SizeofSockaddrInet6
	SizeofUnix    = unix.SizeofSockaddrUnix
	SizeofStorage = 128 // struct sockaddr_storage

	// SizeofData is the length of sa_data in the generic struct sockaddr.
	SizeofData = len(unix.RawSockaddr{}.Data)
	// SizeofPath is the length of sun_path.
	SizeofPath = len(unix.RawSockaddrUnix{}.Path)
)

// Field offsets inside the per-family structures.
const (
	offPort      = 2
	offInet4Addr = 4
	offFlowInfo  = 4
	offInet6Addr = 8
	offScopeID   = 24
	offPath      = 2
	offData      = 2
)
