package features

import "github.com/okian/gotsim/pkg/logger"

// Option applies a configuration option to the Featurizer.
type Option func(*Featurizer)

// WithColumns overrides the column names.
func WithColumns(cols Columns) Option {
	return func(f *Featurizer) {
		if len(cols.Survival) > 0 {
			f.cols = cols
		}
	}
}

// WithThresholds sets the survival bucket boundaries.
func WithThresholds(t Thresholds) Option {
	return func(f *Featurizer) {
		if t.Low > 0 && t.Mid > t.Low {
			f.thresholds = t
		}
	}
}

// WithLogger sets a custom logger for the featurizer.
func WithLogger(l logger.Logger) Option {
	return func(f *Featurizer) {
		if l != nil {
			f.logger = l
		}
	}
}
