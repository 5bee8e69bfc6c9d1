//go:build unix

package sockopt

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isBadDescriptor(err error) bool {
	return errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENOTSOCK)
}
