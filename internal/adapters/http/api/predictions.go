package api

import (
	"errors"
	"net/http"

	"github.com/okian/gotsim/internal/adapters/repository"
	"github.com/okian/gotsim/pkg/logger"
)

// PredictionHandler serves JSON lookups.
type PredictionHandler struct {
	store  Store
	inputs []string
	logger logger.Logger
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(store Store, o options) *PredictionHandler {
	return &PredictionHandler{store: store, inputs: o.inputs, logger: o.logger}
}

// HandleLookup handles GET /api/v1/predictions requests.
func (h *PredictionHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	combination, err := Combination(r.URL.Query(), h.inputs, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, err := h.store.Lookup(r.Context(), combination)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidCombination) || isBadRequest(err):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		h.logger.Warn(r.Context(), "prediction lookup failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
	}
}
