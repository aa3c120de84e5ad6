// Package server exposes the journal's lifecycle operations and metrics
// reads over HTTP. It owns no business rules: every request is decoded,
// handed to the application service, and the result (or a mapped error)
// is written back as JSON.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cfdjournal/internal/app"
	"cfdjournal/internal/ports"
)

// Server is the HTTP API server for the journal.
type Server struct {
	httpServer *http.Server
	logger     ports.Logger
}

// New creates a Server with all routes registered.
func New(addr string, journal *app.JournalService, logger ports.Logger) *Server {
	h := &handlers{journal: journal, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.health)

	mux.HandleFunc("POST /api/accounts", h.createAccount)
	mux.HandleFunc("GET /api/accounts", h.listAccounts)
	mux.HandleFunc("PUT /api/accounts/{id}/commissions", h.updateCommissions)

	mux.HandleFunc("POST /api/symbols", h.createSymbol)
	mux.HandleFunc("GET /api/symbols", h.listSymbols)
	mux.HandleFunc("PUT /api/symbols/{id}/active", h.setSymbolActive)

	mux.HandleFunc("POST /api/positions", h.openPosition)
	mux.HandleFunc("GET /api/positions", h.listPositions)
	mux.HandleFunc("GET /api/positions/{id}", h.getPosition)
	mux.HandleFunc("POST /api/positions/{id}/fills", h.addToPosition)
	mux.HandleFunc("POST /api/positions/{id}/close", h.closePosition)
	mux.HandleFunc("DELETE /api/positions/{id}", h.deletePosition)

	mux.HandleFunc("GET /api/metrics/performance", h.performance)
	mux.HandleFunc("GET /api/metrics/calendar", h.calendar)
	mux.HandleFunc("GET /api/metrics/time", h.timeMetrics)
	mux.HandleFunc("GET /api/metrics/monthly", h.monthlyPnL)
	mux.HandleFunc("GET /api/metrics/symbols", h.symbolDistribution)

	srv := &http.Server{
		Addr:         addr,
		Handler:      logging(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP server starting", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
