package tproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/die-net/tcpredir/internal/dialer"
	"github.com/die-net/tcpredir/internal/metrics"
	"github.com/die-net/tcpredir/internal/relay"
	"github.com/die-net/tcpredir/internal/sockopt"
)

// Config is fixed for the lifetime of a Server.
type Config struct {
	// Dialer connects to original destinations. Nil means a direct dialer.
	Dialer dialer.Dialer

	Relay relay.Config

	// KeepAlive is applied to both sockets of every relayed connection.
	KeepAlive net.KeepAliveConfig

	// MaxConns bounds concurrently handled connections. Zero means no limit.
	MaxConns int
}

type Server struct {
	ctx context.Context
	cfg Config
	log *zap.Logger

	Dialer dialer.Dialer

	// OriginalDst resolves where an accepted connection was headed.
	OriginalDst func(net.Conn) (*net.TCPAddr, error)

	// Mark reads the routing mark of an accepted connection.
	Mark func(net.Conn) (uint32, bool)

	relayer *relay.Relayer
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	nextID  atomic.Uint64
}

// NewServer returns a Server whose connections live until ctx is done.
func NewServer(ctx context.Context, cfg Config, log *zap.Logger) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirectDialer(dialer.Config{})
	}

	s := &Server{
		ctx:         ctx,
		cfg:         cfg,
		log:         log,
		Dialer:      cfg.Dialer,
		OriginalDst: OriginalDst,
		Mark:        sockopt.Mark,
		relayer:     relay.New(cfg.Relay),
	}
	if cfg.MaxConns > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConns))
	}
	return s
}

// Serve accepts connections on ln and handles each in its own goroutine.
// Once the server's context is done, an Accept error ends Serve cleanly
// after in-flight connections finish; before that it is returned.
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if s.sem != nil && !s.sem.TryAcquire(1) {
			metrics.ConnectionsRejected.WithLabelValues(metrics.RejectTooMany).Inc()
			s.log.Warn("connection rejected: too many connections",
				zap.Stringer("client", c.RemoteAddr()), zap.Int("max_conns", s.cfg.MaxConns))
			_ = c.Close()
			continue
		}

		s.wg.Go(func() {
			if s.sem != nil {
				defer s.sem.Release(1)
			}
			s.handle(c)
		})
	}
}

func (s *Server) handle(inbound net.Conn) {
	metrics.ConnectionsAccepted.Inc()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	c := newConnection(s.nextID.Add(1), inbound, s.log)

	c.setState(StateResolving)
	dst, err := s.OriginalDst(inbound)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues(metrics.RejectNoOriginalDst).Inc()
		c.log.Warn("original destination unavailable", zap.Error(err))
		_ = inbound.Close()
		c.setState(StateFailed)
		return
	}
	c.setDestination(dst)
	c.Mark, c.HasMark = s.Mark(inbound)

	if c.HasMark {
		c.log.Info("connection incoming", zap.Uint32("mark", c.Mark))
	} else {
		c.log.Info("connection incoming")
	}

	c.setState(StateGuarding)
	if err := CheckLoop(c.Local, dst); err != nil {
		metrics.ConnectionsRejected.WithLabelValues(metrics.RejectLoop).Inc()
		c.log.Warn("connection from local network", zap.Error(err))
		c.setState(StateClosing)
		_ = inbound.Close()
		c.setState(StateClosed)
		return
	}

	c.setState(StateConnecting)
	ctx := s.ctx
	if c.HasMark {
		ctx = dialer.WithMark(ctx, c.Mark, func(err error) {
			s.socketOptionFailed(c, err)
		})
	}
	outbound, err := s.Dialer.DialContext(ctx, "tcp", dst.String())
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues(metrics.RejectConnect).Inc()
		c.log.Error("connect failed", zap.Error(err))
		_ = inbound.Close()
		c.setState(StateFailed)
		return
	}

	c.setState(StateConfiguring)
	if err := s.configure(c, inbound, outbound); err != nil {
		metrics.ConnectionsRejected.WithLabelValues(metrics.RejectSocketOption).Inc()
		_ = inbound.Close()
		_ = outbound.Close()
		c.setState(StateFailed)
		return
	}

	c.setState(StateRelaying)
	res, err := s.relayer.Relay(s.ctx, inbound, outbound)

	c.setState(StateClosing)
	_ = inbound.Close()
	_ = outbound.Close()
	c.setState(StateClosed)

	duration := time.Since(c.Created)
	metrics.ConnectionsClosed.WithLabelValues(res.Reason.String()).Inc()
	metrics.BytesTransferred.WithLabelValues(metrics.DirectionUpload).Add(float64(res.ClientToServer))
	metrics.BytesTransferred.WithLabelValues(metrics.DirectionDownload).Add(float64(res.ServerToClient))
	metrics.ConnectionDuration.Observe(duration.Seconds())

	fields := []zap.Field{
		zap.Int64("bytes_sent", res.ClientToServer),
		zap.Int64("bytes_received", res.ServerToClient),
		zap.Int64("bytes_total", res.Total),
		zap.Stringer("reason", res.Reason),
		zap.Duration("duration", duration),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.log.Info("connection closed", fields...)
}

// configure disables Nagle and sets keepalive on both sockets. Only an
// unusable descriptor is returned; anything else is reported and ignored.
func (s *Server) configure(c *Connection, conns ...net.Conn) error {
	for _, conn := range conns {
		if err := sockopt.DisableNagle(conn); err != nil {
			s.socketOptionFailed(c, err)
			if sockopt.IsHardError(err) {
				return err
			}
		}
		if err := sockopt.ApplyKeepAlive(conn, s.cfg.KeepAlive); err != nil {
			s.socketOptionFailed(c, err)
			if sockopt.IsHardError(err) {
				return err
			}
		}
	}
	return nil
}

func (s *Server) socketOptionFailed(c *Connection, err error) {
	op := "unknown"
	var serr *sockopt.Error
	if errors.As(err, &serr) {
		op = serr.Op
	}
	metrics.SocketOptionErrors.WithLabelValues(op).Inc()
	c.log.Warn("socket option failed", zap.String("op", op), zap.Bool("fatal", sockopt.IsHardError(err)), zap.Error(err))
}
