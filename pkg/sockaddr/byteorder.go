package sockaddr

import (
	"encoding/binary"
	"fmt"
)

// Htons returns v as two bytes in network byte order.
func Htons(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

// Ntohs reads a 16-bit value in network byte order. b must be exactly two
// bytes long.
func Ntohs(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("%w: got %d bytes, want 2", ErrWrongLength, len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

// Htonl returns v as four bytes in network byte order.
func Htonl(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

// Ntohl reads a 32-bit value in network byte order. b must be exactly four
// bytes long.
func Ntohl(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: got %d bytes, want 4", ErrWrongLength, len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}
