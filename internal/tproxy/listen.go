package tproxy

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP listens on addr for redirected connections. Keepalive is left
// off here; the server configures each accepted socket itself.
func ListenTCP(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: -1}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}
