package socket

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	ErrUnsupportedFamily = errors.New("address family not supported")
	ErrUnsupportedLevel  = errors.New("option level not supported")
	ErrUnsupportedOption = errors.New("option not supported")
	ErrOptionValue       = errors.New("invalid option value")
)

// Errno reports the system error number behind err, if there is one. The
// number can be compared with the E* entries of Constants.
func Errno(err error) (unix.Errno, bool) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
