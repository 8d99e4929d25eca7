package api

import (
	"net/http"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/registry"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/scheduler"
)

// systemHandler serves health and status endpoints.
type systemHandler struct {
	deps Deps
}

// statusResponse is the system status payload.
type statusResponse struct {
	Service       string          `json:"service"`
	Status        string          `json:"status"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Tasks         registry.Counts `json:"tasks"`
	Scheduler     scheduler.Stats `json:"scheduler"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Health handles GET /health.
func (h *systemHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"healthy","service":"smartdoc"}`))
}

// Ready handles GET /ready. It fails when the model server cannot be
// reached, so load balancers stop routing work here.
func (h *systemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.deps.ReadyCheck != nil {
		if err := h.deps.ReadyCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","reason":"model server unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// Status handles GET /api/v1/system/status.
func (h *systemHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Service:       "smartdoc",
		Status:        "running",
		UptimeSeconds: time.Since(h.deps.StartedAt).Seconds(),
		Tasks:         h.deps.Registry.Counts(),
		Scheduler:     h.deps.Scheduler.Stats(),
		Timestamp:     time.Now().UTC(),
	})
}
