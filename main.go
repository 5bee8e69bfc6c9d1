package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/tcpredir/internal/dialer"
	"github.com/die-net/tcpredir/internal/metrics"
	"github.com/die-net/tcpredir/internal/relay"
	"github.com/die-net/tcpredir/internal/sockopt"
	"github.com/die-net/tcpredir/internal/tproxy"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("tcpredir", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tcpredir [flags] [listen [timeout-seconds]]\n")
		flags.PrintDefaults()
	}

	var (
		listen      = flags.String("listen", "127.0.0.1:1080", "Listen address for redirected connections")
		idleTimeout = flags.Duration("idle-timeout", relay.DefaultIdleTimeout, "Close a connection after this long with no traffic in either direction (0 disables)")

		strategy   = flags.String("strategy", "direct", "Relay strategy: direct | queued")
		bufferSize = flags.Int("buffer-size", relay.DefaultBufferSize, "Per-direction copy buffer size for the direct strategy")
		chunkSize  = flags.Int("chunk-size", relay.DefaultChunkSize, "Read chunk size for the queued strategy")
		queueDepth = flags.Int("queue-depth", relay.DefaultQueueDepth, "Chunks buffered per direction for the queued strategy")

		upstream           = flags.String("upstream", defaultUpstream(), "Upstream forwarding target URL: direct:// | http://[user:pass@]host:port | https://[user:pass@]host:port | socks5://[user:pass@]host:port")
		dialTimeout        = flags.Duration("dial-timeout", 10*time.Second, "Timeout for outbound TCP connect")
		negotiationTimeout = flags.Duration("negotiation-timeout", 10*time.Second, "Timeout for upstream proxy negotiation")
		tcpKeepAlive       = flags.String("tcp-keepalive", "auto", "TCP keepalive: auto|on|off|keepidle:keepintvl:keepcnt (auto probes after --idle-timeout)")
		maxConns           = flags.Int("max-conns", 0, "Maximum concurrent connections, 0 for no limit")

		debugListen = flags.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof and /metrics (e.g. 127.0.0.1:6060). Empty disables.")
		logFormat   = flags.String("log-format", "json", "Log format: json | console")
		verbose     = flags.Bool("verbose", false, "Log per-connection state transitions")
	)

	flags.SortFlags = false
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := applyPositional(flags.Args(), listen, idleTimeout); err != nil {
		return err
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive, *idleTimeout)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	strat, err := relay.ParseStrategy(*strategy)
	if err != nil {
		return fmt.Errorf("invalid --strategy: %w", err)
	}

	logger, err := newLogger(*logFormat, *verbose)
	if err != nil {
		return fmt.Errorf("invalid --log-format: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dialCfg := dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
	}
	d, err := dialer.New(dialCfg, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	cfg := tproxy.Config{
		Dialer: d,
		Relay: relay.Config{
			Strategy:    strat,
			BufferSize:  *bufferSize,
			ChunkSize:   *chunkSize,
			QueueDepth:  *queueDepth,
			IdleTimeout: *idleTimeout,
		},
		KeepAlive: ka,
		MaxConns:  *maxConns,
	}

	for _, msg := range platformWarnings(tproxy.IsSupported, sockopt.SupportsMark) {
		logger.Warn(msg)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		http.Handle("/metrics", metrics.Handler())
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logger.Info("debug listening", zap.String("addr", *debugListen))
	}

	ln, err := tproxy.ListenTCP(ctx, *listen)
	if err != nil {
		return fmt.Errorf("tproxy listen: %w", err)
	}
	tsrv := tproxy.NewServer(ctx, cfg, logger)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := tsrv.Serve(ln); err != nil {
			return fmt.Errorf("tproxy serve: %w", err)
		}
		return nil
	})
	logger.Info("tproxy listening",
		zap.String("addr", ln.Addr().String()),
		zap.Stringer("strategy", strat),
		zap.Duration("idle_timeout", *idleTimeout),
		zap.String("upstream", redactUpstream(*upstream)))

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	logger.Info("shutting down")
	return err
}

// platformWarnings lists what this platform can't do for redirected
// connections.
func platformWarnings(origDst, mark bool) []string {
	var warnings []string
	if !origDst {
		warnings = append(warnings, "original destination lookup is not supported on this platform; every connection will be rejected")
	}
	if !mark {
		warnings = append(warnings, "routing marks are not supported on this platform; outbound sockets use default routing")
	}
	return warnings
}

// applyPositional lets "tcpredir [listen [timeout-seconds]]" override the
// matching flags.
func applyPositional(args []string, listen *string, idleTimeout *time.Duration) error {
	switch len(args) {
	case 0:
		return nil
	case 1, 2:
	default:
		return fmt.Errorf("too many arguments: %q", args)
	}

	*listen = args[0]
	if len(args) == 2 {
		d, err := parsePositiveSeconds(args[1])
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", args[1], err)
		}
		*idleTimeout = d
	}
	return nil
}

func newLogger(format string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// parseTCPKeepAlive parses --tcp-keepalive. "auto" starts probing once the
// connection has been idle for idleTimeout.
func parseTCPKeepAlive(s string, idleTimeout time.Duration) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "auto":
		if idleTimeout <= 0 {
			return net.KeepAliveConfig{Enable: true}, nil
		}
		return net.KeepAliveConfig{Enable: true, Idle: idleTimeout}, nil
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected auto|on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

// redactUpstream hides any password in the upstream URL.
func redactUpstream(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}

func defaultUpstream() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}
