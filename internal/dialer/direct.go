package dialer

import (
	"context"
	"net"

	"github.com/die-net/tcpredir/internal/sockopt"
)

type directDialer struct {
	cfg Config
}

func NewDirectDialer(cfg Config) Dialer {
	return &directDialer{cfg: cfg}
}

// DialContext connects to address. The socket family follows address, and
// a mark from WithMark is applied before connect.
func (d *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	// Keepalive is configured by the caller once the connection is up.
	nd := net.Dialer{Timeout: d.cfg.DialTimeout, KeepAlive: -1}
	if m, ok := markFromContext(ctx); ok {
		nd.Control = sockopt.MarkControl(m.value, m.onErr)
	}

	conn, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, &ConnectError{Network: network, Address: address, Err: err}
	}
	return conn, nil
}
