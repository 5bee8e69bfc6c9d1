//go:build !unix

package sockopt

import (
	"errors"
	"syscall"
)

func isBadDescriptor(err error) bool {
	return errors.Is(err, syscall.EBADF)
}
