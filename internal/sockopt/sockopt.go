package sockopt

import (
	"errors"
	"net"
	"syscall"
)

// Error reports a socket option that could not be read or applied.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "sockopt " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsHardError reports whether err means the socket itself is unusable, as
// opposed to an option that the kernel declined.
func IsHardError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed) || isBadDescriptor(err)
}

// TCPConn finds the *net.TCPConn under c, looking through wrappers such as
// *tls.Conn that expose NetConn.
func TCPConn(c net.Conn) (*net.TCPConn, bool) {
	for c != nil {
		if tc, ok := c.(*net.TCPConn); ok {
			return tc, true
		}
		nc, ok := c.(interface{ NetConn() net.Conn })
		if !ok {
			return nil, false
		}
		c = nc.NetConn()
	}
	return nil, false
}

// ApplyKeepAlive enables TCP keepalive on the TCP socket under c using ka.
// Connections with no TCP socket are left alone.
func ApplyKeepAlive(c net.Conn, ka net.KeepAliveConfig) error {
	tc, ok := TCPConn(c)
	if !ok {
		return nil
	}
	if err := tc.SetKeepAliveConfig(ka); err != nil {
		return &Error{Op: "keepalive", Err: err}
	}
	return nil
}

// DisableNagle sets TCP_NODELAY on the TCP socket under c. Connections with
// no TCP socket are left alone.
func DisableNagle(c net.Conn) error {
	tc, ok := TCPConn(c)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return &Error{Op: "nodelay", Err: err}
	}
	return nil
}

// MarkControl returns a net.Dialer Control function that sets mark on the
// socket before it connects. A failure to set the mark is passed to onErr
// (if non-nil) and does not abort the dial.
func MarkControl(mark uint32, onErr func(error)) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		if err := SetMark(c, mark); err != nil && onErr != nil {
			onErr(err)
		}
		return nil
	}
}

func rawConn(c net.Conn) (syscall.RawConn, bool) {
	tc, ok := TCPConn(c)
	if !ok {
		return nil, false
	}
	rc, err := tc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return rc, true
}
