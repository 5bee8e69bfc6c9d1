package testutil

import (
	"errors"
	"fmt"
	"net"
	"slices"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/tcpredir/internal/socks5"
)

var ErrNoAcceptableMethod = errors.New("no acceptable authentication method")

// SOCKS5Request is a parsed CONNECT request.
type SOCKS5Request struct {
	Cmd     byte
	Address string
}

// SOCKS5Handshake performs the proxy side of negotiation and reads the
// request that follows it.
func SOCKS5Handshake(conn net.Conn, auth socks5.Auth) (*SOCKS5Request, error) {
	if err := socks5Negotiate(conn, auth); err != nil {
		return nil, err
	}

	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return &SOCKS5Request{Cmd: req.Cmd, Address: req.Address()}, nil
}

func socks5Negotiate(conn net.Conn, auth socks5.Auth) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	want := byte(txsocks5.MethodNone)
	if auth.Username != "" {
		want = txsocks5.MethodUsernamePassword
	}
	if !slices.Contains(neg.Methods, want) {
		// RFC 1928: 0xFF means no acceptable methods.
		_, _ = txsocks5.NewNegotiationReply(0xff).WriteTo(conn)
		return ErrNoAcceptableMethod
	}
	if _, err := txsocks5.NewNegotiationReply(want).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}
	if want == txsocks5.MethodNone {
		return nil
	}

	urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}
	if string(urq.Uname) != auth.Username || string(urq.Passwd) != auth.Password {
		_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
		return socks5.ErrAuthFailed
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}
	return nil
}

// WriteSOCKS5Reply writes a CONNECT reply with status rep. A nil bound
// address is sent as the IPv4 zero address.
func WriteSOCKS5Reply(conn net.Conn, rep byte, bound net.Addr) error {
	atyp, addr, port := byte(txsocks5.ATYPIPv4), []byte{0, 0, 0, 0}, []byte{0, 0}
	if bound != nil {
		var err error
		atyp, addr, port, err = txsocks5.ParseAddress(bound.String())
		if err != nil {
			return fmt.Errorf("parse bound address %q: %w", bound.String(), err)
		}
		if atyp == txsocks5.ATYPDomain {
			addr = addr[1:]
		}
	}
	if _, err := txsocks5.NewReply(rep, atyp, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
