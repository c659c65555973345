package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/operation"
	"github.com/Kikk79/docstore/pkg/service"
)

// OperationsHandler manages asynchronous load operations over HTTP.
//
// Submissions return immediately with an operation id; clients poll
// the listing for state and progress.
type OperationsHandler struct {
	svc *service.Service
}

// NewOperationsHandler creates a new operations handler.
func NewOperationsHandler(svc *service.Service) *OperationsHandler {
	return &OperationsHandler{svc: svc}
}

// operationView is the wire representation of an operation snapshot.
type operationView struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	State      string    `json:"state"`
	Percentage float64   `json:"percentage"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func viewOf(s operation.Snapshot) operationView {
	return operationView{
		ID:         s.ID,
		Source:     s.Source,
		State:      string(s.State),
		Percentage: s.Progress.Percentage,
		CreatedAt:  s.CreatedAt,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// submitRequest is the body of POST /operations.
type submitRequest struct {
	Source string `json:"source"`
}

// Submit handles POST /operations - enqueue an asynchronous load.
//
// Returns 202 Accepted with the operation id. Duplicate submissions
// for a source already loading return the in-flight operation's id.
func (h *OperationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("body must be JSON with a non-empty source"))
		return
	}

	id, err := h.svc.Open(req.Source, operation.Callbacks{})
	if err != nil {
		writeJSON(w, statusOf(err), errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusAccepted, okResponse(map[string]string{"id": id}))
}

// List handles GET /operations - snapshots of all known operations.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps := h.svc.ActiveOperations()
	views := make([]operationView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, viewOf(s))
	}
	writeJSON(w, http.StatusOK, okResponse(views))
}

// Cancel handles DELETE /operations/{id}.
func (h *OperationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(id); err != nil {
		writeJSON(w, statusOf(err), errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"id": id, "result": "cancellation requested"}))
}

// CancelAll handles DELETE /operations.
func (h *OperationsHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	n := h.svc.CancelAll()
	writeJSON(w, http.StatusOK, okResponse(map[string]int{"cancelled": n}))
}

// statusOf maps a load error to an HTTP status code.
func statusOf(err error) int {
	switch document.CodeOf(err) {
	case document.ErrNotFound:
		return http.StatusNotFound
	case document.ErrPermission:
		return http.StatusForbidden
	case document.ErrUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case document.ErrTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
