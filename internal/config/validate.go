package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, failure.ErrConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for consistency across sections.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if len(c.Installments) == 0 {
		return invalid("installments must not be empty")
	}
	if _, err := c.ChapterCounts(); err != nil {
		return invalid("installments: %v", err)
	}
	for _, in := range c.Installments {
		if in.Flag == "" || in.Survival == "" {
			return invalid("installment %d needs flag and survival columns", in.Number)
		}
	}
	if _, err := c.Codebook(); err != nil {
		return invalid("classes: %v", err)
	}
	f := c.Featurize
	if !(f.LowMax < f.MidMax) {
		return invalid("featurize: low_max %v must be below mid_max %v", f.LowMax, f.MidMax)
	}
	if c.Model.TestFraction <= 0 || c.Model.TestFraction >= 1 {
		return invalid("model.test_fraction must be in (0,1), got %v", c.Model.TestFraction)
	}
	if len(c.Model.Features) == 0 {
		return invalid("model.features must not be empty")
	}
	if err := c.Model.Forest.Validate(); err != nil {
		return invalid("model.forest: %v", err)
	}
	if len(c.Score.Features) == 0 {
		return invalid("score.features must not be empty")
	}
	if c.Score.MaxFeatures < 1 {
		return invalid("score.max_features must be positive, got %d", c.Score.MaxFeatures)
	}
	switch strings.ToLower(c.Database.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		return invalid("database.driver %q is not sqlite or postgres", c.Database.Driver)
	}
	if !identifier.MatchString(c.Database.Table) {
		return invalid("database.table %q is not a plain identifier", c.Database.Table)
	}
	return nil
}

// ChapterCounts builds the installment chapter table.
func (c *Config) ChapterCounts() (model.ChapterCounts, error) {
	m := make(map[int]float64, len(c.Installments))
	for _, in := range c.Installments {
		if _, dup := m[in.Number]; dup {
			return model.ChapterCounts{}, fmt.Errorf("%w: installment %d listed twice", failure.ErrConfig, in.Number)
		}
		m[in.Number] = in.Chapters
	}
	return model.NewChapterCounts(m)
}

// Codebook builds the class codebook.
func (c *Config) Codebook() (model.Codebook, error) {
	return model.NewCodebook(c.Classes)
}
