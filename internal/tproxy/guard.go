package tproxy

import (
	"fmt"
	"net"
)

// CheckLoop returns ErrLoop if dst is local, the address the connection was
// accepted on. Relaying it would connect straight back to the listener.
func CheckLoop(local net.Addr, dst *net.TCPAddr) error {
	la, ok := local.(*net.TCPAddr)
	if !ok || dst == nil {
		return nil
	}
	if la.Port == dst.Port && la.IP.Equal(dst.IP) {
		return fmt.Errorf("%w: %s", ErrLoop, dst)
	}
	return nil
}
