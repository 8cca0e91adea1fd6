// Package api serves the prediction lookup: an HTML form, a JSON endpoint and
// the metrics scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/gotsim/internal/domain/cleaning"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
)

// Store is the read side of the prediction store used by the handlers.
type Store interface {
	Lookup(ctx context.Context, combination map[string]int) (model.Prediction, error)
	First(ctx context.Context) (model.Prediction, error)
}

// AllegianceField is the form and query parameter naming the faction.
const AllegianceField = "Allegiance"

// DefaultInputs are the binary character attributes accepted besides the
// allegiance.
func DefaultInputs() []string {
	return []string{"Gender", "Nobility", "boolDeadRelations", "isPopular", "isMarried"}
}

// Allegiances are the choices offered by the form, in display order.
func Allegiances() []string {
	return []string{"Baratheon", "Lannister", "Stark", "Targaryen", "Night's Watch", "Wildling"}
}

// Server wires HTTP routes for the lookup service.
type Server struct {
	healthHandler     *HealthHandler
	pageHandler       *PageHandler
	predictionHandler *PredictionHandler
	metrics           *metrics.Manager
}

// NewServer creates a new API server with all handlers.
func NewServer(store Store, opts ...Option) *Server {
	o := options{
		inputs:  DefaultInputs(),
		logger:  logger.Nop(),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:     NewHealthHandler(o.metrics),
		pageHandler:       NewPageHandler(store, o),
		predictionHandler: NewPredictionHandler(store, o),
		metrics:           o.metrics,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.metrics, s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.metrics, s.pageHandler.HandleIndex, "index"))
	mux.HandleFunc("POST /add", MetricsMiddleware(s.metrics, s.pageHandler.HandlePredict, "add"))
	mux.HandleFunc("POST /predict", MetricsMiddleware(s.metrics, s.pageHandler.HandlePredict, "predict"))
	mux.HandleFunc("GET /api/v1/predictions", MetricsMiddleware(s.metrics, s.predictionHandler.HandleLookup, "predictions"))
}

// Combination converts request values into the feature combination stored
// for it. Binary inputs must be "0" or "1" unless lenient is set, in which
// case anything but "1" counts as 0. The allegiance is mapped onto one
// faction indicator.
func Combination(values url.Values, inputs []string, lenient bool) (map[string]int, error) {
	out := make(map[string]int, len(inputs)+len(model.Factions()))
	for _, name := range inputs {
		raw := strings.TrimSpace(values.Get(name))
		switch {
		case raw == "1":
			out[name] = 1
		case raw == "0", lenient:
			out[name] = 0
		case raw == "":
			return nil, fmt.Errorf("%w: missing %s", ErrBadRequest, name)
		default:
			return nil, fmt.Errorf("%w: %s=%q is not 0 or 1", ErrBadRequest, name, raw)
		}
	}

	raw := values.Get(AllegianceField)
	faction, ok := cleaning.ConsolidateAffiliation(raw)
	if !ok {
		return nil, fmt.Errorf("%w: unknown %s %q", ErrBadRequest, AllegianceField, raw)
	}
	feats, err := model.FactionFeatures(faction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	for name, v := range feats {
		out[name] = v
	}
	return out, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isBadRequest(err error) bool { return errors.Is(err, ErrBadRequest) }
