package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// aLongTimeAgo is a deadline in the past, used to abort a handshake.
var aLongTimeAgo = time.Unix(1, 0)

// New parses upstream and constructs the appropriate outbound Dialer.
//
// Supported schemes:
//   - direct://
//   - http://[user:pass@]host:port
//   - https://[user:pass@]host:port
//   - socks5://[user:pass@]host:port
//
// For schemes that require a host, a default port is applied if the URL host is
// missing a port.
func New(cfg Config, upstream string) (Dialer, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("invalid URL: path should be empty")
	}

	switch u.Scheme {
	case "":
		return nil, errors.New("invalid url: missing scheme")
	case "direct":
		return NewDirectDialer(cfg), nil
	case "http", "https", "socks5":
		if u.Hostname() == "" {
			return nil, errors.New("invalid url: missing host")
		}
		if u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), defaultPortForScheme(u.Scheme))
		}

		var user, pass string
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}

		if u.Scheme == "socks5" {
			return NewSOCKS5ProxyDialer(cfg, u.Host, user, pass), nil
		}
		return NewHTTPProxyDialer(cfg, u, user, pass)
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	case "socks5":
		return "1080"
	default:
		return ""
	}
}

// handshake runs fn against c with the negotiation timeout applied and
// aborts it if ctx is cancelled. c is closed if the handshake fails.
func handshake(ctx context.Context, c net.Conn, timeout time.Duration, fn func() error) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(aLongTimeAgo)
	})

	if timeout > 0 {
		_ = c.SetDeadline(time.Now().Add(timeout))
	}

	err := fn()
	if !stop() {
		// The deadline was forced into the past; c is unusable.
		err = context.Cause(ctx)
	}
	if err != nil {
		_ = c.Close()
		return err
	}

	_ = c.SetDeadline(time.Time{})
	return nil
}
