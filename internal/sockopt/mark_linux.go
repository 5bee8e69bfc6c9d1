//go:build linux

package sockopt

import (
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// SupportsMark is true where sockets carry a routing mark.
const SupportsMark = true

// Mark returns the SO_MARK of c. A zero mark, or one that can't be read, is
// reported as absent.
func Mark(c net.Conn) (uint32, bool) {
	rc, ok := rawConn(c)
	if !ok {
		return 0, false
	}

	var (
		mark int
		serr error
	)
	err := rc.Control(func(fd uintptr) {
		mark, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_MARK)
	})
	if err != nil || serr != nil || mark == 0 {
		return 0, false
	}
	return uint32(mark), true
}

// SetMark sets SO_MARK on the socket behind rc. This needs CAP_NET_ADMIN.
func SetMark(rc syscall.RawConn, mark uint32) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_MARK, int(mark))
	})
	if err != nil {
		return &Error{Op: "set mark", Err: err}
	}
	if serr != nil {
		return &Error{Op: "set mark", Err: os.NewSyscallError("setsockopt", serr)}
	}
	return nil
}
