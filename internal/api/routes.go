package api

import (
	"net/http"

	"cooker/internal/health"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	HealthChecker  *health.Checker
	MetricsHandler http.Handler // Optional
	Status         StatusSource // Optional
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.HealthChecker, cfg.Status)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	mux.HandleFunc("GET /v1/status", handler.Status)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	// Outermost first
	var h http.Handler = mux
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
