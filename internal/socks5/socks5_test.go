package socks5_test

import (
	"errors"
	"fmt"
	"net"
	"testing"

	txsocks5 "github.com/txthinking/socks5"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/tcpredir/internal/socks5"
	"github.com/die-net/tcpredir/internal/testutil"
)

func TestClientDial(t *testing.T) {
	t.Parallel()

	bound := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345}
	tests := []struct {
		name       string
		clientAuth socks5.Auth
		serverAuth socks5.Auth
		address    string
		rep        byte
		wantAuth   bool
		wantRep    byte
	}{
		{name: "no_auth", address: "203.0.113.5:443"},
		{name: "user_pass", clientAuth: socks5.Auth{Username: "user", Password: "pass"}, serverAuth: socks5.Auth{Username: "user", Password: "pass"}, address: "203.0.113.5:443"},
		{name: "ipv6", address: "[2001:db8::1]:8443"},
		{name: "bad_password", clientAuth: socks5.Auth{Username: "user", Password: "nope"}, serverAuth: socks5.Auth{Username: "user", Password: "pass"}, address: "203.0.113.5:443", wantAuth: true},
		{name: "refused", address: "203.0.113.5:443", rep: txsocks5.RepConnectionRefused, wantRep: txsocks5.RepConnectionRefused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			var g errgroup.Group
			g.Go(func() error {
				req, err := testutil.SOCKS5Handshake(serverConn, tt.serverAuth)
				if err != nil {
					if tt.wantAuth && errors.Is(err, socks5.ErrAuthFailed) {
						return nil
					}
					return err
				}
				if req.Cmd != txsocks5.CmdConnect {
					return fmt.Errorf("unexpected command: %d", req.Cmd)
				}
				if req.Address != tt.address {
					return fmt.Errorf("request for %q, want %q", req.Address, tt.address)
				}
				return testutil.WriteSOCKS5Reply(serverConn, tt.rep, bound)
			})

			err := socks5.ClientDial(clientConn, tt.clientAuth, tt.address)
			switch {
			case tt.wantAuth:
				if !errors.Is(err, socks5.ErrAuthFailed) {
					t.Fatalf("expected ErrAuthFailed, got %v", err)
				}
			case tt.wantRep != 0:
				var rerr *socks5.ReplyError
				if !errors.As(err, &rerr) || rerr.Rep != tt.wantRep {
					t.Fatalf("expected reply %#x, got %v", tt.wantRep, err)
				}
			case err != nil:
				t.Fatal(err)
			}
			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestClientDialMissingCredentials(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := testutil.SOCKS5Handshake(serverConn, socks5.Auth{Username: "user", Password: "pass"})
		errc <- err
	}()

	if err := socks5.ClientDial(clientConn, socks5.Auth{}, "203.0.113.5:443"); err == nil {
		t.Fatal("expected error without credentials")
	}
	if err := <-errc; !errors.Is(err, testutil.ErrNoAcceptableMethod) {
		t.Fatalf("server: expected no acceptable method, got %v", err)
	}
}
