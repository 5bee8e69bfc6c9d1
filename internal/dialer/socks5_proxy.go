package dialer

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/die-net/tcpredir/internal/socks5"
)

// SOCKS5ProxyDialer reaches its target through a SOCKS5 proxy using the
// CONNECT command.
type SOCKS5ProxyDialer struct {
	cfg       Config
	proxyAddr string
	auth      socks5.Auth
	direct    Dialer
}

// NewSOCKS5ProxyDialer constructs a dialer for the proxy at proxyAddr. An
// empty username disables authentication.
func NewSOCKS5ProxyDialer(cfg Config, proxyAddr, username, password string) Dialer {
	return &SOCKS5ProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		auth:      socks5.Auth{Username: username, Password: password},
		direct:    NewDirectDialer(cfg),
	}
}

// DialContext connects to the proxy, carrying any mark from the context on
// that socket, then asks it to CONNECT to address.
func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, &ConnectError{Network: network, Address: address, Err: net.UnknownNetworkError(network)}
	}

	c, err := f.direct.DialContext(ctx, network, f.proxyAddr)
	if err != nil {
		return nil, &ConnectError{Network: network, Address: address, Err: fmt.Errorf("socks5 proxy: %w", err)}
	}

	if err := handshake(ctx, c, f.cfg.NegotiationTimeout, func() error {
		return socks5.ClientDial(c, f.auth, address)
	}); err != nil {
		return nil, &ConnectError{Network: network, Address: address, Err: fmt.Errorf("socks5 proxy %s: %w", f.proxyAddr, err)}
	}
	return c, nil
}
