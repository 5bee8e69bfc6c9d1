package dialer

import "fmt"

// ConnectError reports an outbound connection that could not be set up:
// refused, unreachable, timed out, or rejected by an upstream proxy.
type ConnectError struct {
	Network string
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s: %v", e.Network, e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
