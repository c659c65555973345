package handlers

import (
	"net/http"

	"github.com/Kikk79/docstore/pkg/service"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the document service wired and responsive?
type HealthHandler struct {
	svc *service.Service
}

// NewHealthHandler creates a new health handler.
//
// The service parameter may be nil, in which case the readiness check
// returns unhealthy status.
func NewHealthHandler(svc *service.Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. Designed for
// Kubernetes liveness probes; succeeds as long as the HTTP server is
// responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "docstore",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK when the document service is assembled, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("document service not initialized"))
		return
	}

	stats := h.svc.CacheStats()
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"cached_documents":  stats.CurrentCount,
		"active_operations": len(h.svc.ActiveOperations()),
	}))
}
