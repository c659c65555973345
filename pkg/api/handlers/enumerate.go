package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/enumerate"
	"github.com/Kikk79/docstore/pkg/service"
)

// EnumerateHandler serves paged directory listings backed by the
// virtualized enumeration model.
type EnumerateHandler struct {
	svc *service.Service
}

// NewEnumerateHandler creates a new enumeration handler.
func NewEnumerateHandler(svc *service.Service) *EnumerateHandler {
	return &EnumerateHandler{svc: svc}
}

// Count handles GET /enumerate/count?parent=DIR.
func (h *EnumerateHandler) Count(w http.ResponseWriter, r *http.Request) {
	parent := r.URL.Query().Get("parent")
	if parent == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("parent query parameter is required"))
		return
	}

	total, err := h.svc.Enumeration().TotalCount(r.Context(), parent)
	if err != nil {
		writeJSON(w, statusOf(err), errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]int{"total": total}))
}

// Range handles GET /enumerate?parent=DIR&first=N&last=M.
//
// Returns entries in the inclusive index range and registers the range
// as the current viewport so surrounding batches prefetch in the
// background.
func (h *EnumerateHandler) Range(w http.ResponseWriter, r *http.Request) {
	parent := r.URL.Query().Get("parent")
	if parent == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("parent query parameter is required"))
		return
	}

	first, err := queryInt(r, "first", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	last, err := queryInt(r, "last", first+enumerate.DefaultBatchSize-1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if last < first {
		writeJSON(w, http.StatusBadRequest, errorResponse("last must not be less than first"))
		return
	}

	model := h.svc.Enumeration()
	entries := make([]enumerate.Entry, 0, last-first+1)
	for i := first; i <= last; i++ {
		entry, err := model.EntryAt(r.Context(), parent, i)
		if err != nil {
			if document.IsNotFound(err) || isOutOfRange(err) {
				break
			}
			writeJSON(w, statusOf(err), errorResponse(err.Error()))
			return
		}
		entries = append(entries, entry)
	}

	model.SetViewportRange(parent, first, last)

	writeJSON(w, http.StatusOK, okResponse(map[string]interface{}{
		"parent":  parent,
		"first":   first,
		"entries": entries,
	}))
}

func isOutOfRange(err error) bool {
	return errors.Is(err, enumerate.ErrIndexOutOfRange)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &badQueryError{name: name}
	}
	return n, nil
}

type badQueryError struct{ name string }

func (e *badQueryError) Error() string {
	return e.name + " must be a non-negative integer"
}
