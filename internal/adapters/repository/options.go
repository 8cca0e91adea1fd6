package repository

import (
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
)

type options struct {
	table   string
	logger  logger.Logger
	metrics *metrics.Manager
}

func defaultOptions() options {
	return options{
		table:   DefaultTable,
		logger:  logger.Nop(),
		metrics: metrics.Default(),
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithTable sets the SQL table name. Ignored by the memory store.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics manager the store reports to.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
