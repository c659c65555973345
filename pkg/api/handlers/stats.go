package handlers

import (
	"net/http"
	"strconv"

	"github.com/Kikk79/docstore/pkg/service"
)

// StatsHandler exposes cache and enumeration statistics.
type StatsHandler struct {
	svc *service.Service
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(svc *service.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Cache handles GET /stats/cache.
//
// Returns the cumulative cache counters plus the derived hit rate.
func (h *StatsHandler) Cache(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.CacheStats()
	writeJSON(w, http.StatusOK, okResponse(map[string]interface{}{
		"hits":               stats.Hits,
		"misses":             stats.Misses,
		"evictions":          stats.Evictions,
		"total_accesses":     stats.TotalAccesses,
		"total_loaded_bytes": stats.TotalLoadedBytes,
		"total_saved_bytes":  stats.TotalSavedBytes,
		"current_size_bytes": stats.CurrentSizeBytes,
		"current_count":      stats.CurrentCount,
		"hit_rate":           stats.HitRate(),
	}))
}

// Enumeration handles GET /stats/enumeration.
func (h *StatsHandler) Enumeration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.svc.Enumeration().CacheStats()))
}

// Frequency handles GET /stats/frequency?limit=N.
//
// Returns the most frequently accessed cached documents.
func (h *StatsHandler) Frequency(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse("limit must be a positive integer"))
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, okResponse(h.svc.AccessFrequency(limit)))
}
