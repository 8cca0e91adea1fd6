package training

import (
	"github.com/okian/gotsim/internal/domain/forest"
	"github.com/okian/gotsim/pkg/logger"
)

// Option applies a configuration option to the Trainer.
type Option func(*Trainer)

// WithParams sets the forest hyperparameters.
func WithParams(p forest.Params) Option {
	return func(t *Trainer) { t.params = p }
}

// WithTestFraction sets the share of rows held out for evaluation.
func WithTestFraction(f float64) Option {
	return func(t *Trainer) { t.testFraction = f }
}

// WithTarget sets the target column.
func WithTarget(name string) Option {
	return func(t *Trainer) {
		if name != "" {
			t.target = name
		}
	}
}

// WithRunID stamps the artifact with a known run id instead of a fresh one.
func WithRunID(id string) Option {
	return func(t *Trainer) {
		if id != "" {
			t.runID = id
		}
	}
}

// WithLogger sets a custom logger for the trainer.
func WithLogger(l logger.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}
