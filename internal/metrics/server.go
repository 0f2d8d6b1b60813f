package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the Prometheus registry and the liveness/readiness probes.
// Components report their status through UpdateHealthCheck; the readiness
// probe fails while any component reports something other than "ok".
type Server struct {
	httpServer *http.Server
	registry   *prometheus.Registry

	mu     sync.RWMutex
	ready  bool
	checks map[string]string
}

// NewServer creates the metrics/probe HTTP server. A nil registry falls back
// to the default global registry.
func NewServer(port int, metricsPath, healthPath, readyPath string, registry *prometheus.Registry) *Server {
	s := &Server{
		registry: registry,
		checks:   make(map[string]string),
	}

	mux := http.NewServeMux()
	if registry != nil {
		mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle(metricsPath, promhttp.Handler())
	}
	mux.HandleFunc(healthPath, s.handleHealth)
	mux.HandleFunc(readyPath, s.handleReady)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start begins serving and blocks until the server stops. A clean shutdown
// returns nil.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// UpdateHealthCheck records the status of the named component. Anything other
// than "ok" marks the service not ready.
func (s *Server) UpdateHealthCheck(component string, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[component] = status
}

// SetReady flips the overall readiness gate. It is set once startup wiring
// completes and cleared at the start of shutdown.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// snapshot returns the readiness gate and a copy of the component statuses.
func (s *Server) snapshot() (bool, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks := make(map[string]string, len(s.checks))
	ok := s.ready
	for component, status := range s.checks {
		checks[component] = status
		if status != "ok" {
			ok = false
		}
	}
	return ok, checks
}

// handleHealth is the liveness probe: 200 whenever the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady is the readiness probe: 200 only when the service is marked
// ready and every component check passes, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ready, checks := s.snapshot()
	status := "ok"
	code := http.StatusOK
	if !ready {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
