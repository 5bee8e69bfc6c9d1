package relay

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects how bytes are moved within one direction.
type Strategy int

const (
	// Direct copies with one goroutine per direction.
	Direct Strategy = iota
	// Queued decouples reads from writes through a bounded chunk queue.
	Queued
)

func (s Strategy) String() string {
	switch s {
	case Direct:
		return "direct"
	case Queued:
		return "queued"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "direct" or "queued".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return Direct, nil
	case "queued":
		return Queued, nil
	default:
		return 0, fmt.Errorf("unknown relay strategy %q (want direct or queued)", s)
	}
}

const (
	DefaultBufferSize  = 256 << 10
	DefaultChunkSize   = 16 << 10
	DefaultQueueDepth  = 1024
	DefaultIdleTimeout = time.Hour
)

type Config struct {
	Strategy Strategy

	// BufferSize is the per-direction copy buffer for Direct.
	BufferSize int

	// ChunkSize and QueueDepth bound Queued: at most QueueDepth chunks of
	// ChunkSize bytes wait for the writer in each direction.
	ChunkSize  int
	QueueDepth int

	// IdleTimeout cancels the relay after this long without traffic in
	// either direction. Zero disables it.
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}
