//go:build !linux

package tproxy

import (
	"fmt"
	"net"
	"runtime"
)

const IsSupported = false

func OriginalDst(_ net.Conn) (*net.TCPAddr, error) {
	return nil, fmt.Errorf("%w: not supported on %s", ErrOriginalDst, runtime.GOOS)
}
