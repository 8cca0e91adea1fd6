package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/gotsim/internal/adapters/repository"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// unavailableText is shown whenever the store cannot be read.
const unavailableText = "The prediction store is not available right now. Please try again later."

type indexView struct {
	Allegiances []string
	Prediction  *model.Prediction
	Example     bool
	Missing     bool
}

// PageHandler renders the HTML form and its results.
type PageHandler struct {
	store  Store
	inputs []string
	logger logger.Logger
}

// NewPageHandler creates a new page handler.
func NewPageHandler(store Store, o options) *PageHandler {
	return &PageHandler{store: store, inputs: o.inputs, logger: o.logger}
}

// HandleIndex handles GET / requests. The first stored prediction is shown
// as an example.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	view := indexView{Allegiances: Allegiances(), Example: true}
	p, err := h.store.First(r.Context())
	switch {
	case err == nil:
		view.Prediction = &p
	case errors.Is(err, repository.ErrNotFound):
	default:
		h.unavailable(r.Context(), w, err)
		return
	}
	h.logger.Debug(r.Context(), "index page accessed")
	h.render(r.Context(), w, http.StatusOK, "index.html", view)
}

// HandlePredict handles POST /add and POST /predict requests.
func (h *PageHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.render(ctx, w, http.StatusBadRequest, "error.html", err.Error())
		return
	}
	combination, err := Combination(r.PostForm, h.inputs, true)
	if err != nil {
		h.logger.Warn(ctx, "rejected form input", logger.Error(err))
		h.render(ctx, w, http.StatusBadRequest, "error.html", err.Error())
		return
	}

	view := indexView{Allegiances: Allegiances()}
	p, err := h.store.Lookup(ctx, combination)
	switch {
	case err == nil:
		view.Prediction = &p
	case errors.Is(err, repository.ErrNotFound):
		view.Missing = true
	case errors.Is(err, repository.ErrInvalidCombination):
		h.render(ctx, w, http.StatusBadRequest, "error.html", err.Error())
		return
	default:
		h.unavailable(ctx, w, err)
		return
	}
	h.logger.Info(ctx, "new prediction generated", logger.String("allegiance", r.PostForm.Get(AllegianceField)))
	h.render(ctx, w, http.StatusOK, "index.html", view)
}

func (h *PageHandler) unavailable(ctx context.Context, w http.ResponseWriter, err error) {
	h.logger.Warn(ctx, "not able to display predictions, error page returned", logger.Error(err))
	h.render(ctx, w, http.StatusServiceUnavailable, "error.html", unavailableText)
}

func (h *PageHandler) render(ctx context.Context, w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error(ctx, "render page", logger.String("page", name), logger.Error(err))
	}
}
