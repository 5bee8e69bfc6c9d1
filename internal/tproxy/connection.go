package tproxy

import (
	"net"
	"time"

	"go.uber.org/zap"
)

// State is a step in the life of one relayed connection.
type State int

const (
	StateAccepted State = iota
	StateResolving
	StateGuarding
	StateConnecting
	StateConfiguring
	StateRelaying
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateResolving:
		return "resolving"
	case StateGuarding:
		return "guarding"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateRelaying:
		return "relaying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection describes one accepted connection. It belongs to the
// goroutine handling it.
type Connection struct {
	ID          uint64
	Client      net.Addr
	Local       net.Addr
	Destination *net.TCPAddr
	Mark        uint32
	HasMark     bool
	Created     time.Time

	state State
	log   *zap.Logger
}

func newConnection(id uint64, c net.Conn, log *zap.Logger) *Connection {
	return &Connection{
		ID:      id,
		Client:  c.RemoteAddr(),
		Local:   c.LocalAddr(),
		Created: time.Now(),
		state:   StateAccepted,
		log:     log.With(zap.Uint64("conn", id), zap.Stringer("client", c.RemoteAddr())),
	}
}

func (c *Connection) setState(s State) {
	c.log.Debug("connection state", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
}

func (c *Connection) setDestination(dst *net.TCPAddr) {
	c.Destination = dst
	c.log = c.log.With(zap.Stringer("dst", dst))
}
