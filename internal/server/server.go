// Package server exposes the lifecycle daemon over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/futarchybot/internal/server/handler"
	"github.com/alanyoungcy/futarchybot/internal/server/middleware"
	"github.com/alanyoungcy/futarchybot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Balances   *handler.BalanceHandler
	Operations *handler.OperationHandler
	Markets    *handler.MarketHandler
}

// Server is the headless HTTP + WebSocket API for the lifecycle daemon.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain (auth,
// logging, CORS). wsHub may be nil when the signal bus is not configured.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required beyond the shared middleware).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Balance snapshot.
	mux.HandleFunc("GET /api/balances", handlers.Balances.GetBalances)
	mux.HandleFunc("POST /api/balances/refresh", handlers.Balances.RefreshBalances)

	// Orchestrated operations.
	mux.HandleFunc("POST /api/split", handlers.Operations.Split)
	mux.HandleFunc("POST /api/merge", handlers.Operations.Merge)
	mux.HandleFunc("POST /api/redeem", handlers.Operations.Redeem)
	mux.HandleFunc("POST /api/swap", handlers.Operations.Swap)
	mux.HandleFunc("GET /api/operations", handlers.Operations.ListOperations)

	// Market configuration.
	mux.HandleFunc("GET /api/market", handlers.Markets.GetActive)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server fails
// or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests within
// the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
