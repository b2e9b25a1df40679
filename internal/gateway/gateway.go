// ABOUTME: Gateway orchestrator that owns the HTTP server, store and messaging service
// ABOUTME: Manages listeners (TCP or Tailscale), health endpoints and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"tailscale.com/tsnet"

	"github.com/2389/lostify-gateway/internal/auth"
	"github.com/2389/lostify-gateway/internal/config"
	"github.com/2389/lostify-gateway/internal/conversation"
	"github.com/2389/lostify-gateway/internal/dedupe"
	"github.com/2389/lostify-gateway/internal/store"
)

const (
	// readyTimeout bounds the store ping done by /health/ready
	readyTimeout = 2 * time.Second

	// Idempotency-Key results are replayed for this long
	sendDedupeTTL        = 10 * time.Minute
	sendDedupeMaxEntries = 10000

	// sharedSendTimeout bounds a keyed send, which outlives any one request
	sharedSendTimeout = 30 * time.Second
)

// Gateway orchestrates the lostify-gateway server components.
type Gateway struct {
	config       *config.Config
	store        store.Store
	conversation *conversation.Service
	verifier     *auth.JWTVerifier
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger

	// sendDedupe remembers sends made with an Idempotency-Key; sendFlight
	// collapses concurrent retries of the same key into one append.
	sender     messageSender
	sendDedupe *dedupe.Cache[*store.Message]
	sendFlight singleflight.Group

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Gateway
type Option func(*gatewayOptions)

type gatewayOptions struct {
	storeOpts []store.Option
}

// WithStoreOptions passes extra options to the SQLite store, e.g. a fixed clock
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *gatewayOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// initStore opens the SQLite store described by cfg.
func initStore(cfg *config.Config, logger *slog.Logger, extra []store.Option) (*store.SQLiteStore, error) {
	opts := []store.Option{
		store.WithBusyTimeout(cfg.Database.BusyTimeout),
		store.WithLogger(logger),
	}
	opts = append(opts, extra...)

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from cfg. The store is opened (and any duplicate
// conversations repaired) before New returns.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o gatewayOptions
	for _, opt := range opts {
		opt(&o)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	s, err := initStore(cfg, logger, o.storeOpts)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:       cfg,
		store:        s,
		conversation: conversation.New(s, s, s, logger),
		verifier:     verifier,
		logger:       logger,
		sendDedupe:   dedupe.New[*store.Message](sendDedupeTTL, sendDedupeMaxEntries),
	}
	gw.sender = gw.conversation

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)
	gw.registerAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Handler:           requestIDMiddleware(loggingMiddleware(logger)(mux)),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return gw, nil
}

// Handler returns the root HTTP handler, including middleware.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Verifier returns the JWT verifier used to authenticate API callers.
func (g *Gateway) Verifier() *auth.JWTVerifier {
	return g.verifier
}

// Store returns the gateway's store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// setupTCPListener creates the plain TCP HTTP listener.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run serves HTTP until ctx is canceled or the server fails, then shuts down.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", "error", err)
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and the configured timeout.
// The run context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
// Only the first call does any work; later calls return the same result.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
		if g.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
		}
		errs = appendCloseError(errs, "store close", g.store.Close())
		g.sendDedupe.Close()

		g.shutdownErr = errors.Join(errs...)
	})
	return g.shutdownErr
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
