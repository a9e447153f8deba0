package api

import (
	"context"
	"net/http"
)

// CollectDependencies defines the interface for triggering a collection.
type CollectDependencies interface {
	Collect(ctx context.Context) (CollectResult, error)
}

// CollectHandler handles manual collection requests.
type CollectHandler struct {
	deps CollectDependencies
}

// NewCollectHandler creates a new collect handler.
func NewCollectHandler(deps CollectDependencies) *CollectHandler {
	return &CollectHandler{deps: deps}
}

// HandleCollect handles POST /collect requests.
func (h *CollectHandler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_collect"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	res, err := h.deps.Collect(r.Context())
	if err != nil {
		writeKindError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
