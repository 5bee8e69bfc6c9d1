package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrAuthFailed is returned when the proxy rejects the credentials, or
// requires credentials that weren't configured.
var ErrAuthFailed = errors.New("socks5 authentication failed")

// Auth holds optional username/password credentials. An empty Username
// means no authentication.
type Auth struct {
	Username string
	Password string
}

// ReplyError is a CONNECT reply other than success.
type ReplyError struct {
	Rep byte
}

func (e *ReplyError) Error() string {
	switch e.Rep {
	case txsocks5.RepServerFailure:
		return "socks5 connect: general server failure"
	case txsocks5.RepNotAllowed:
		return "socks5 connect: not allowed by ruleset"
	case txsocks5.RepNetworkUnreachable:
		return "socks5 connect: network unreachable"
	case txsocks5.RepHostUnreachable:
		return "socks5 connect: host unreachable"
	case txsocks5.RepConnectionRefused:
		return "socks5 connect: connection refused"
	case txsocks5.RepTTLExpired:
		return "socks5 connect: TTL expired"
	default:
		return fmt.Sprintf("socks5 connect: reply %#x", e.Rep)
	}
}

// ClientDial negotiates with the proxy on conn and asks it to CONNECT to
// address.
func ClientDial(conn net.Conn, auth Auth, address string) error {
	if err := ClientNegotiate(conn, auth); err != nil {
		return err
	}
	return ClientConnect(conn, address)
}

func ClientNegotiate(conn net.Conn, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Username != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if auth.Username == "" {
			return fmt.Errorf("%w: server requires username/password", ErrAuthFailed)
		}

		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return ErrAuthFailed
		}
		return nil
	default:
		return fmt.Errorf("unsupported negotiation method: %d", neg.Method)
	}
}

func ClientConnect(conn net.Conn, address string) error {
	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if atyp == txsocks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return &ReplyError{Rep: rep.Rep}
	}
	return nil
}
