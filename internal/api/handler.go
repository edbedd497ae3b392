// Package api serves the probe, metrics and status endpoints of a stress run.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cooker/internal/health"
	"cooker/internal/supervisor"
)

// StatusSource reports the progress of a run.
type StatusSource interface {
	Report() supervisor.Report
}

// Handler contains the HTTP handlers of the status server.
type Handler struct {
	health *health.Checker
	status StatusSource
}

// NewHandler creates a new API handler.
func NewHandler(healthChecker *health.Checker, status StatusSource) *Handler {
	return &Handler{
		health: healthChecker,
		status: status,
	}
}

// Healthz handles GET /healthz - liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the backend substrate is unavailable. A degraded
// backend still answers 200.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsServing() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Running       int    `json:"running"`
	ToFinish      int    `json:"toFinish"`
	Failed        int    `json:"failed"`
	MaxConcurrent int    `json:"maxConcurrent"`
	Launched      int    `json:"launched"`
	Completed     int    `json:"completed"`
	Stopped       int    `json:"stopped"`
	Finished      int64  `json:"finished"`
	LifetimeP50   string `json:"lifetimeP50,omitempty"`
	LifetimeP99   string `json:"lifetimeP99,omitempty"`
}

// Status handles GET /v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		h.writeError(w, http.StatusServiceUnavailable, "No run in progress")
		return
	}

	report := h.status.Report()
	resp := StatusResponse{
		Running:       report.Running,
		ToFinish:      report.ToFinish,
		Failed:        report.Failed,
		MaxConcurrent: report.MaxConcurrent,
		Launched:      report.Launched,
		Completed:     report.Completed,
		Stopped:       report.Stopped,
		Finished:      report.Finished,
	}
	if report.Finished > 0 {
		resp.LifetimeP50 = report.LifetimeP50.String()
		resp.LifetimeP99 = report.LifetimeP99.String()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
