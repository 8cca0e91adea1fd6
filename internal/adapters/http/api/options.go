package api

import (
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
)

type options struct {
	inputs  []string
	logger  logger.Logger
	metrics *metrics.Manager
}

// Option applies a configuration option to the Server.
type Option func(*options)

// WithInputs overrides the binary attributes read from requests.
func WithInputs(inputs []string) Option {
	return func(o *options) {
		if len(inputs) > 0 {
			o.inputs = append([]string(nil), inputs...)
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics manager served at /healthz.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
