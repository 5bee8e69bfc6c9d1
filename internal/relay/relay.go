package relay

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrIdleTimeout is the cancellation cause when no traffic was seen in
// either direction for Config.IdleTimeout.
var ErrIdleTimeout = errors.New("relay idle timeout")

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// CloseReason says why a relay ended.
type CloseReason int

const (
	// ReasonPeer means both directions reached EOF.
	ReasonPeer CloseReason = iota
	// ReasonError means a direction failed with a read or write error.
	ReasonError
	// ReasonIdleTimeout means the idle watchdog fired.
	ReasonIdleTimeout
	// ReasonShutdown means the caller's context was cancelled.
	ReasonShutdown
)

func (r CloseReason) String() string {
	switch r {
	case ReasonPeer:
		return "peer"
	case ReasonError:
		return "error"
	case ReasonIdleTimeout:
		return "idle_timeout"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Result summarizes a finished relay.
type Result struct {
	ClientToServer int64
	ServerToClient int64
	// Total is the sum reported to the idle watchdog while relaying.
	Total  int64
	Reason CloseReason
}

// Relayer runs relays with a fixed Config. It is safe for concurrent use.
type Relayer struct {
	cfg    Config
	bufs   *bufferPool
	chunks *bufferPool
}

func New(cfg Config) *Relayer {
	cfg = cfg.withDefaults()
	return &Relayer{
		cfg:    cfg,
		bufs:   newBufferPool(cfg.BufferSize),
		chunks: newBufferPool(cfg.ChunkSize),
	}
}

func (r *Relayer) Config() Config {
	return r.cfg
}

// Relay copies client->server and server->client until both directions
// have finished. It does not close either connection; the caller owns them.
//
// A failing direction does not stop the other one. The returned error is
// the first direction error. It is nil when the relay ended by EOF, or when
// the idle timeout or ctx cancellation came before any direction failed.
func (r *Relayer) Relay(ctx context.Context, client, server net.Conn) (Result, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Cancellation unblocks every pending read and write on both sockets.
	stop := context.AfterFunc(ctx, func() {
		_ = client.SetDeadline(aLongTimeAgo)
		_ = server.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	wd := newWatchdog(r.cfg.IdleTimeout, cancel)
	wdDone := make(chan struct{})
	go func() {
		defer close(wdDone)
		wd.run()
	}()

	up := &direction{src: client, dst: server, wd: wd}
	down := &direction{src: server, dst: client, wd: wd}

	var g errgroup.Group
	g.Go(func() error { return r.copy(ctx, up) })
	g.Go(func() error { return r.copy(ctx, down) })
	err := g.Wait()

	wd.close()
	<-wdDone

	res := Result{
		ClientToServer: up.n,
		ServerToClient: down.n,
		Total:          wd.total,
	}
	switch {
	case errors.Is(context.Cause(ctx), ErrIdleTimeout):
		res.Reason = ReasonIdleTimeout
		if errors.Is(err, ErrIdleTimeout) {
			err = nil
		}
	case ctx.Err() != nil:
		res.Reason = ReasonShutdown
		if errors.Is(err, context.Cause(ctx)) {
			err = nil
		}
	case err != nil:
		res.Reason = ReasonError
	default:
		res.Reason = ReasonPeer
	}
	return res, err
}

func (r *Relayer) copy(ctx context.Context, d *direction) error {
	switch r.cfg.Strategy {
	case Queued:
		return r.copyQueued(ctx, d)
	default:
		return r.copyDirect(ctx, d)
	}
}

// direction is one half of a relay: the read side of src and the write
// side of dst. No other goroutine reads src or writes dst.
type direction struct {
	src, dst net.Conn
	wd       *watchdog

	// n counts bytes written to dst. Only the goroutine writing dst touches it.
	n int64
}

func (d *direction) add(n int) {
	d.n += int64(n)
	d.wd.report(n)
}

// fail maps an I/O error to the relay's cancellation cause when the error
// was provoked by cancellation.
func (d *direction) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return err
}

// unblockRead makes a pending or future read of src return immediately.
func (d *direction) unblockRead() {
	_ = d.src.SetReadDeadline(aLongTimeAgo)
}

type closeWriter interface {
	CloseWrite() error
}

// halfClose signals EOF to the peer of c while leaving its read side open.
// Connections that can't half-close are closed outright.
func halfClose(c net.Conn) {
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}
