package forest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/gotsim/internal/domain/failure"
)

// Criterion measures split quality.
type Criterion string

const (
	Gini    Criterion = "gini"
	Entropy Criterion = "entropy"
)

// Class weighting policies.
const (
	ClassWeightNone     = "none"
	ClassWeightBalanced = "balanced"
)

// Default hyperparameters.
const (
	defaultEstimators      = 100
	defaultMinSamplesSplit = 2
	defaultMaxFeatures     = "sqrt"
	defaultSeed            = 42
)

// Params are the forest hyperparameters. Zero MaxDepth means unlimited.
// MaxFeatures is one of sqrt, log2, auto (same as sqrt), all, a positive
// integer, or a fraction in (0,1].
type Params struct {
	NEstimators     int       `json:"n_estimators" koanf:"n_estimators" yaml:"n_estimators"`
	Criterion       Criterion `json:"criterion" koanf:"criterion" yaml:"criterion"`
	MaxDepth        int       `json:"max_depth" koanf:"max_depth" yaml:"max_depth"`
	MaxFeatures     string    `json:"max_features" koanf:"max_features" yaml:"max_features"`
	ClassWeight     string    `json:"class_weight" koanf:"class_weight" yaml:"class_weight"`
	MinSamplesSplit int       `json:"min_samples_split" koanf:"min_samples_split" yaml:"min_samples_split"`
	Bootstrap       bool      `json:"bootstrap" koanf:"bootstrap" yaml:"bootstrap"`
	Seed            int64     `json:"seed" koanf:"seed" yaml:"seed"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     defaultEstimators,
		Criterion:       Gini,
		MaxDepth:        0,
		MaxFeatures:     defaultMaxFeatures,
		ClassWeight:     ClassWeightNone,
		MinSamplesSplit: defaultMinSamplesSplit,
		Bootstrap:       true,
		Seed:            defaultSeed,
	}
}

// Validate checks every field and the feature-sampling policy.
func (p Params) Validate() error {
	if p.NEstimators < 1 {
		return fmt.Errorf("%w: n_estimators must be positive, got %d", failure.ErrConfig, p.NEstimators)
	}
	if p.Criterion != Gini && p.Criterion != Entropy {
		return fmt.Errorf("%w: unknown criterion %q", failure.ErrConfig, p.Criterion)
	}
	if p.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must not be negative, got %d", failure.ErrConfig, p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("%w: min_samples_split must be at least 2, got %d", failure.ErrConfig, p.MinSamplesSplit)
	}
	switch p.ClassWeight {
	case "", ClassWeightNone, ClassWeightBalanced:
	default:
		return fmt.Errorf("%w: unknown class_weight %q", failure.ErrConfig, p.ClassWeight)
	}
	if _, err := p.featuresPerSplit(1); err != nil {
		return err
	}
	return nil
}

// featuresPerSplit resolves MaxFeatures for n features.
func (p Params) featuresPerSplit(n int) (int, error) {
	s := strings.ToLower(strings.TrimSpace(p.MaxFeatures))
	var m int
	switch s {
	case "", "sqrt", "auto":
		m = int(math.Sqrt(float64(n)))
	case "log2":
		m = int(math.Log2(float64(n)))
	case "all", "none":
		m = n
	default:
		if i, err := strconv.Atoi(s); err == nil {
			if i < 1 {
				return 0, fmt.Errorf("%w: max_features must be positive, got %d", failure.ErrConfig, i)
			}
			m = i
			break
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil || x <= 0 || x > 1 {
			return 0, fmt.Errorf("%w: invalid max_features %q", failure.ErrConfig, p.MaxFeatures)
		}
		m = int(x * float64(n))
	}
	if m < 1 {
		m = 1
	}
	if m > n {
		m = n
	}
	return m, nil
}

// Option applies a configuration option to the forest parameters.
type Option func(*Params)

// WithParams replaces all parameters.
func WithParams(p Params) Option {
	return func(dst *Params) { *dst = p }
}

// WithEstimators sets the number of trees.
func WithEstimators(n int) Option {
	return func(p *Params) { p.NEstimators = n }
}

// WithCriterion sets the split criterion.
func WithCriterion(c Criterion) Option {
	return func(p *Params) { p.Criterion = c }
}

// WithMaxDepth caps tree depth; 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(p *Params) { p.MaxDepth = d }
}

// WithMaxFeatures sets the feature-sampling policy.
func WithMaxFeatures(s string) Option {
	return func(p *Params) { p.MaxFeatures = s }
}

// WithClassWeight sets the class weighting policy.
func WithClassWeight(s string) Option {
	return func(p *Params) { p.ClassWeight = s }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

// WithBootstrap toggles sampling with replacement per tree.
func WithBootstrap(b bool) Option {
	return func(p *Params) { p.Bootstrap = b }
}

// WithSeed sets the random seed.
func WithSeed(seed int64) Option {
	return func(p *Params) { p.Seed = seed }
}
