package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Kikk79/docstore/pkg/service"
)

// DocumentsHandler serves document content and cache management
// endpoints.
type DocumentsHandler struct {
	svc *service.Service
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(svc *service.Service) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

// Get handles GET /documents?source=PATH.
//
// Loads the document through the cache and returns its content and
// metadata.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("source query parameter is required"))
		return
	}

	res, err := h.svc.Get(r.Context(), source)
	if err != nil {
		writeJSON(w, statusOf(err), errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(map[string]interface{}{
		"content":  res.Text(),
		"metadata": res.Metadata,
	}))
}

// Preview handles GET /documents/preview?source=PATH&max_bytes=N.
//
// Streams at most max_bytes of the document without caching it.
func (h *DocumentsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("source query parameter is required"))
		return
	}

	maxBytes := int64(4096)
	if raw := r.URL.Query().Get("max_bytes"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse("max_bytes must be a positive integer"))
			return
		}
		maxBytes = n
	}

	head, meta, err := h.svc.Preview(r.Context(), source, maxBytes)
	if err != nil {
		writeJSON(w, statusOf(err), errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(map[string]interface{}{
		"content":  string(head),
		"metadata": meta,
	}))
}

// warmRequest is the body of POST /documents/warm.
type warmRequest struct {
	Sources []string `json:"sources"`
}

// Warm handles POST /documents/warm - pre-load documents into the
// cache.
func (h *DocumentsHandler) Warm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Sources) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("body must be JSON with a non-empty sources list"))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(h.svc.Warm(r.Context(), req.Sources)))
}

// Invalidate handles DELETE /documents?source=PATH.
//
// Drops a single document from the cache. With stale=true instead of a
// source, drops every entry whose file changed on disk.
func (h *DocumentsHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("stale") == "true" {
		n := h.svc.InvalidateStale()
		writeJSON(w, http.StatusOK, okResponse(map[string]int{"invalidated": n}))
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("source query parameter is required"))
		return
	}

	if !h.svc.Invalidate(source) {
		writeJSON(w, http.StatusNotFound, errorResponse("document is not cached"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"invalidated": source}))
}
