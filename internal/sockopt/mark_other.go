//go:build !linux

package sockopt

import (
	"errors"
	"net"
	"syscall"
)

const SupportsMark = false

func Mark(_ net.Conn) (uint32, bool) {
	return 0, false
}

func SetMark(_ syscall.RawConn, _ uint32) error {
	return &Error{Op: "set mark", Err: errors.ErrUnsupported}
}
