package dialer

import (
	"time"
)

type Config struct {
	// DialTimeout bounds the outbound TCP connect.
	DialTimeout time.Duration
	// NegotiationTimeout bounds the handshake with an upstream proxy.
	NegotiationTimeout time.Duration
}
