// Package httpserver is the observability surface (spec 6 "External
// interfaces"): GET /healthz (liveness, no deep check) and GET /metrics
// (Prometheus exposition).
//
// Grounded on the teacher's pkg/server handler style (struct holding
// dependencies, method-per-endpoint http.HandlerFunc).
package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartesi/rollups-node/pkg/metrics"
)

// Handlers serves the two observability endpoints.
type Handlers struct {
	metrics *metrics.Registry
	logger  *log.Logger
}

// NewHandlers builds the handler set.
func NewHandlers(m *metrics.Registry, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[httpserver] ", log.LstdFlags)
	}
	return &Handlers{metrics: m, logger: logger}
}

// HandleHealthz implements GET /healthz: 200 with an empty body whenever
// the process can answer at all. No deep health check (spec 6).
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Mux builds the HTTP handler for both endpoints.
func (h *Handlers) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Prometheus(), promhttp.HandlerOpts{}))
	return mux
}

// Server is a thin wrapper that runs Mux behind an *http.Server, so the
// claimer's top-level task pair (spec 5: claimer loop + observability
// server) can be started and shut down uniformly.
type Server struct {
	inner *http.Server
}

// NewServer binds addr; ListenAndServe does the actual listening.
func NewServer(addr string, handlers *Handlers) *Server {
	return &Server{inner: &http.Server{
		Addr:              addr,
		Handler:           handlers.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// ListenAndServe blocks until the server stops or ctx's Done fires.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.inner.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.inner.Shutdown(shutdownCtx)
	}
}
