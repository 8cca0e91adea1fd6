package scoring

import "github.com/okian/gotsim/pkg/logger"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithMaxFeatures caps the number of enumerated features; the table has 2^N rows.
func WithMaxFeatures(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.maxFeatures = n
		}
	}
}

// WithMappings overrides the class code -> prediction and remark text taken
// from the model codebook.
func WithMappings(labels, remarks map[int]string) Option {
	return func(s *Scorer) {
		if len(labels) > 0 {
			s.labels = labels
		}
		if len(remarks) > 0 {
			s.remarks = remarks
		}
	}
}

// WithLogger sets a custom logger for the scorer.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}
