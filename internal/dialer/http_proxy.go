package dialer

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// HTTPProxyDialer reaches its target through an HTTP or HTTPS proxy using
// the CONNECT method.
type HTTPProxyDialer struct {
	cfg      Config
	proxyURL *url.URL
	auth     string
	direct   Dialer

	// tlsConfig overrides the client config used for https proxies.
	tlsConfig *tls.Config
}

// NewHTTPProxyDialer constructs a CONNECT dialer for proxyURL.
//
// If username is non-empty, Proxy-Authorization is set using HTTP Basic auth.
func NewHTTPProxyDialer(cfg Config, proxyURL *url.URL, username, password string) (Dialer, error) {
	if proxyURL == nil {
		return nil, errors.New("http proxy dialer: missing proxy url")
	}
	if proxyURL.Hostname() == "" {
		return nil, errors.New("http proxy dialer: invalid proxy host")
	}
	if proxyURL.Scheme != "http" && proxyURL.Scheme != "https" {
		return nil, fmt.Errorf("http proxy dialer: unsupported scheme: %q", proxyURL.Scheme)
	}

	auth := ""
	if username != "" {
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}

	return &HTTPProxyDialer{
		cfg:      cfg,
		proxyURL: proxyURL,
		auth:     auth,
		direct:   NewDirectDialer(cfg),
	}, nil
}

// DialContext connects to the proxy and issues CONNECT for address. For
// https proxies the CONNECT is sent over TLS. Negotiation is bounded by the
// configured NegotiationTimeout and by ctx.
func (f *HTTPProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, &ConnectError{Network: network, Address: address, Err: net.UnknownNetworkError(network)}
	}

	c, err := f.direct.DialContext(ctx, network, f.proxyURL.Host)
	if err != nil {
		return nil, &ConnectError{Network: network, Address: address, Err: fmt.Errorf("http proxy: %w", err)}
	}

	if f.proxyURL.Scheme == "https" {
		tcfg := f.tlsConfig
		if tcfg == nil {
			tcfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: f.proxyURL.Hostname()}
		}
		c = tls.Client(c, tcfg)
	}

	var br *bufio.Reader
	if err := handshake(ctx, c, f.cfg.NegotiationTimeout, func() (err error) {
		br, err = f.connect(c, address)
		return err
	}); err != nil {
		return nil, &ConnectError{Network: network, Address: address, Err: fmt.Errorf("http proxy %s: %w", f.proxyURL.Host, err)}
	}

	// Bytes the target sent right behind the proxy's reply.
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: c, r: br}, nil
	}
	return c, nil
}

func (f *HTTPProxyDialer) connect(c net.Conn, address string) (*bufio.Reader, error) {
	if tc, ok := c.(*tls.Conn); ok {
		if err := tc.Handshake(); err != nil {
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if f.auth != "" {
		req.Header.Set("Proxy-Authorization", f.auth)
	}
	if err := req.Write(c); err != nil {
		return nil, fmt.Errorf("write connect: %w", err)
	}

	br := bufio.NewReader(c)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("read connect: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("connect refused: %s", resp.Status)
	}
	return br, nil
}

// bufferedConn drains r before reading from Conn.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	if c.r.Buffered() > 0 {
		return c.r.Read(p)
	}
	return c.Conn.Read(p)
}

// NetConn returns the wrapped connection.
func (c *bufferedConn) NetConn() net.Conn {
	return c.Conn
}

// CloseWrite half-closes the underlying connection when it supports it.
func (c *bufferedConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}
