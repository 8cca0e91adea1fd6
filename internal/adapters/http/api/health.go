package api

import (
	"net/http"

	"github.com/okian/gotsim/pkg/metrics"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	metrics *metrics.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(m *metrics.Manager) *HealthHandler {
	return &HealthHandler{metrics: m}
}

// HandleHealth handles GET /healthz requests by serving Prometheus metrics.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}
