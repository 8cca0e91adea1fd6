package cleaning

import "github.com/okian/gotsim/pkg/logger"

// Option applies a configuration option to the Cleaner.
type Option func(*Cleaner)

// WithColumns overrides the raw column names.
func WithColumns(cols Columns) Option {
	return func(c *Cleaner) {
		if len(cols.Flags) > 0 {
			c.cols = cols
		}
	}
}

// WithAliases replaces the affiliation alias table applied before whitespace
// normalization.
func WithAliases(aliases map[string]string) Option {
	return func(c *Cleaner) {
		if aliases == nil {
			return
		}
		c.aliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			c.aliases[k] = v
		}
	}
}

// WithLogger sets a custom logger for the cleaner.
func WithLogger(l logger.Logger) Option {
	return func(c *Cleaner) {
		if l != nil {
			c.logger = l
		}
	}
}
