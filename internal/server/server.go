// Package server собирает HTTP сервер docsync: REST API сущностей,
// realtime канал, health check и выдачу dev токенов.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/server/config"
	"github.com/iudanet/docsync/internal/server/handlers"
	"github.com/iudanet/docsync/internal/server/jwt"
	"github.com/iudanet/docsync/internal/server/middleware"
	"github.com/iudanet/docsync/internal/server/realtime"
	"github.com/iudanet/docsync/internal/server/storage/sqlite"
)

const (
	healthPath  = "/health"
	tokenPath   = "/api/v1/auth/token"
	channelPath = "/api/v1/channel"

	shutdownTimeout = 10 * time.Second
)

// Server is a configured docsync backend.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Storage
	hub     *realtime.Hub
	tokens  *jwt.Service
	handler http.Handler
}

// New opens the database and wires all handlers.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	store, err := sqlite.New(ctx, cfg.DatabasePath, logger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	clk := clock.Real()
	hub := realtime.NewHub(store, realtime.Settings{
		Environment:    cfg.Channel.Environment,
		WriteTimeout:   cfg.Channel.WriteTimeout,
		PingInterval:   cfg.Channel.PingInterval,
		ReadTimeout:    cfg.Channel.ReadTimeout,
		SendBufferSize: cfg.Channel.SendBufferSize,
		OpLogDepth:     cfg.Channel.OpLogDepth,
	}, clk, logger.With("component", "realtime"))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  store,
		hub:    hub,
		tokens: jwt.NewService(cfg.JWTSecret, cfg.TokenTTL),
	}
	s.handler = s.routes(version, clk)

	return s, nil
}

// Tokens returns the token service, used by the CLI to mint tokens offline.
func (s *Server) Tokens() *jwt.Service {
	return s.tokens
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(version string, clk clock.Clock) http.Handler {
	// Защищенные маршруты требуют Bearer токен
	protected := http.NewServeMux()
	handlers.NewEntityHandler(s.logger, s.store, s.hub, clk).Register(protected)
	protected.Handle(channelPath, s.hub)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", middleware.AuthMiddleware(s.logger, s.tokens)(protected))
	mux.HandleFunc("GET "+healthPath, handlers.NewHealthHandler(s.logger, s.store, version).Health)
	if s.cfg.DevTokens {
		s.logger.Warn("development token endpoint is enabled", "path", tokenPath)
		mux.HandleFunc("POST "+tokenPath, handlers.NewTokenHandler(s.logger, s.tokens).Issue)
	}

	var h http.Handler = mux
	h = middleware.RateLimitByPathMiddleware([]middleware.PathRateLimit{
		{Path: tokenPath, Requests: s.cfg.RateLimit.TokenRequests, Window: s.cfg.RateLimit.Window},
	}, s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window, s.logger)(h)
	h = middleware.LoggingWithSkip(s.logger, []string{healthPath})(h)
	h = middleware.RecoveryMiddleware(s.logger)(h)
	return h
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	// Websocket соединения сервер не отслеживает после hijack, их закрывает hub
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the hub and the database.
func (s *Server) Close() error {
	s.hub.Close()
	return s.store.Close()
}
