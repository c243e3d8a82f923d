// Package server exposes the indexed entity graph over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quaylabs/obindexer/internal/observability"
	"github.com/quaylabs/obindexer/internal/server/handler"
	"github.com/quaylabs/obindexer/internal/server/middleware"
	"github.com/quaylabs/obindexer/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Vaults *handler.VaultHandler
	Orders *handler.OrderHandler
	Trades *handler.TradeHandler
	Clears *handler.ClearHandler
}

// Server is the read-only HTTP + WebSocket API over the indexed data.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered, wiring logging, CORS,
// and auth middleware, the Prometheus scrape endpoint, and the WebSocket
// hub. wsHub may be nil when no signal bus is configured.
func New(
	cfg Config,
	handlers Handlers,
	wsHub *ws.Hub,
	registry *prometheus.Registry,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/vaults", handlers.Vaults.ListVaults)
	mux.HandleFunc("GET /api/vaults/{id}", handlers.Vaults.GetVault)
	mux.HandleFunc("GET /api/vaults/{id}/deposits", handlers.Vaults.ListVaultDeposits)
	mux.HandleFunc("GET /api/vaults/{id}/withdrawals", handlers.Vaults.ListVaultWithdrawals)
	mux.HandleFunc("GET /api/vaults/{id}/changes", handlers.Vaults.ListVaultChanges)

	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("GET /api/orders/{id}/trades", handlers.Orders.ListOrderTrades)

	mux.HandleFunc("GET /api/trades/{id}", handlers.Trades.GetTrade)

	mux.HandleFunc("GET /api/clears", handlers.Clears.ListRecent)
	mux.HandleFunc("GET /api/clears/{id}", handlers.Clears.GetClear)

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger, metrics)(h)
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
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
