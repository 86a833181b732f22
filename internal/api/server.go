package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported by the server.
const ServiceName = "intervue"

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Config controls listeners and limits.
type Config struct {
	Listen          string
	HealthListen    string
	RateRPS         float64
	RateBurst       int
	ShutdownTimeout time.Duration
}

// Server hosts the HTTP routes and the gRPC health service.
type Server struct {
	cfg    Config
	logger *slog.Logger
	chat   http.Handler
	live   http.Handler
	health *health.Server

	sessions *sessionScope
}

// NewServer wires routes. live may be nil when no websocket transport is configured.
func NewServer(cfg Config, logger *slog.Logger, chat, live http.Handler) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		chat:     chat,
		live:     live,
		health:   health.NewServer(),
		sessions: newSessionScope(),
	}
}

// Handler returns the HTTP route table. The rate limiter's sweeper stops with ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	chat := s.chat
	if s.cfg.RateRPS > 0 {
		chat = NewRateLimiter(ctx, s.cfg.RateRPS, s.cfg.RateBurst).Middleware(chat)
	}
	mux.Handle("/api/chat", chat)
	if s.live != nil {
		mux.Handle("/v1/live", s.sessions.wrap(s.live))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Serve listens on the configured addresses until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	healthLn, err := net.Listen("tcp", s.cfg.HealthListen)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.HealthListen, err)
	}
	return s.ServeListeners(ctx, httpLn, healthLn)
}

// ServeListeners serves on already-bound listeners. Health reports SERVING until ctx is
// done, then NOT_SERVING while the HTTP server drains.
func (s *Server) ServeListeners(ctx context.Context, httpLn, healthLn net.Listener) error {
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	httpServer := &http.Server{Handler: s.Handler(ctx), ReadHeaderTimeout: readHeaderTimeout}
	httpServer.RegisterOnShutdown(s.sessions.end)

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(healthLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	s.logger.Info("server listening", "listen", httpLn.Addr().String(), "health_listen", healthLn.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.health.Shutdown()
	s.logger.Info("server draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := s.sessions.wait(shutdownCtx); err != nil {
		s.logger.Warn("live sessions still open after drain", "error", err)
	}
	stopGRPC(shutdownCtx, grpcServer)
	return serveErr
}

func stopGRPC(ctx context.Context, srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
	}
}

// sessionScope bounds websocket sessions by the server's lifetime. http.Server.Shutdown
// neither waits for nor closes hijacked connections, so each live request runs under a
// context the scope cancels when draining starts.
type sessionScope struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSessionScope() *sessionScope {
	ctx, cancel := context.WithCancel(context.Background())
	return &sessionScope{ctx: ctx, cancel: cancel}
}

func (s *sessionScope) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.wg.Add(1)
		defer s.wg.Done()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(s.ctx, cancel)
		defer stop()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *sessionScope) end() { s.cancel() }

// wait blocks until every live handler has returned or ctx is done.
func (s *sessionScope) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
