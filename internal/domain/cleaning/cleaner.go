// Package cleaning implements the base cleaner: it derives the installment a
// character was introduced in, fills unknown chapters with the middle of the
// installment, and keeps only characters of the major factions.
package cleaning

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// Columns names the raw columns the cleaner reads and the ones it derives.
type Columns struct {
	Flags        []string // appearance flags, flags[i] is installment i+1
	BookOfDeath  string
	DeathChapter string
	IntroChapter string
	Affiliation  string // raw, rewritten in normalized form
	Intro        string // derived intro installment
	Consolidated string // derived faction
}

// DefaultColumns returns the column names of character-deaths.csv.
func DefaultColumns() Columns {
	return Columns{
		Flags:        []string{"GoT", "CoK", "SoS", "FfC", "DwD"},
		BookOfDeath:  "Book of Death",
		DeathChapter: "Death Chapter",
		IntroChapter: "Book Intro Chapter",
		Affiliation:  "Allegiances",
		Intro:        "book_intro",
		Consolidated: "Allegiance",
	}
}

// Cleaner normalizes raw character records. It is safe for concurrent use.
type Cleaner struct {
	counts  model.ChapterCounts
	cols    Columns
	aliases map[string]string
	logger  logger.Logger
}

// New creates a Cleaner for the given chapter counts.
func New(counts model.ChapterCounts, opts ...Option) *Cleaner {
	c := &Cleaner{
		counts:  counts,
		cols:    DefaultColumns(),
		aliases: DefaultAliases(),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IntroInstallment returns the lowest 1-indexed installment whose flag is 1,
// or len(flags)+1 when none is.
func IntroInstallment(flags []float64) (int, error) {
	for i, v := range flags {
		switch {
		case math.IsNaN(v):
			return 0, fmt.Errorf("%w: appearance flag %d is null", failure.ErrType, i+1)
		case v == 1:
			return i + 1, nil
		case v != 0:
			return 0, fmt.Errorf("%w: appearance flag %d is %v, want 0 or 1", failure.ErrType, i+1, v)
		}
	}
	return len(flags) + 1, nil
}

// FillChapter imputes the middle of the installment when the installment of
// an event is known but its chapter is not. Otherwise chapter passes through.
func FillChapter(installment, chapter float64, counts model.ChapterCounts) (float64, error) {
	k, known, err := model.Installment(installment)
	if err != nil {
		return 0, err
	}
	if !known || !math.IsNaN(chapter) {
		return chapter, nil
	}
	n, err := counts.Chapters(k)
	if err != nil {
		return 0, err
	}
	return n / 2, nil
}

// Clean returns a new frame with the derived intro installment, filled
// chapters and consolidated faction. Rows outside the closed faction set are
// excluded. Clean is a fixed point on its own output.
func (c *Cleaner) Clean(ctx context.Context, in *dataset.Frame) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("%w: clean: nil frame", failure.ErrType)
	}
	if len(c.cols.Flags) != c.counts.Installments() {
		return nil, fmt.Errorf("%w: clean: %d appearance flags for %d installments",
			failure.ErrConfig, len(c.cols.Flags), c.counts.Installments())
	}

	flags := make([][]float64, len(c.cols.Flags))
	for i, name := range c.cols.Flags {
		col, err := in.Floats(name)
		if err != nil {
			return nil, c.fail(ctx, "appearance flag", name, err)
		}
		flags[i] = col
	}
	death, err := in.Floats(c.cols.BookOfDeath)
	if err != nil {
		return nil, c.fail(ctx, "book of death", c.cols.BookOfDeath, err)
	}
	deathCh, err := in.Floats(c.cols.DeathChapter)
	if err != nil {
		return nil, c.fail(ctx, "death chapter", c.cols.DeathChapter, err)
	}
	introCh, err := in.Floats(c.cols.IntroChapter)
	if err != nil {
		return nil, c.fail(ctx, "intro chapter", c.cols.IntroChapter, err)
	}
	raw, err := in.Strings(c.cols.Affiliation)
	if err != nil {
		return nil, c.fail(ctx, "affiliation", c.cols.Affiliation, err)
	}

	n := in.Len()
	intro := make([]float64, n)
	filledDeath := make([]float64, n)
	filledIntro := make([]float64, n)
	normalized := make([]string, n)
	faction := make([]string, n)
	keep := make([]bool, n)
	row := make([]float64, len(flags))

	for i := 0; i < n; i++ {
		for j := range flags {
			row[j] = flags[j][i]
		}
		k, err := IntroInstallment(row)
		if err != nil {
			return nil, c.fail(ctx, "intro installment", fmt.Sprintf("row %d", i), err)
		}
		intro[i] = float64(k)

		if filledDeath[i], err = FillChapter(death[i], deathCh[i], c.counts); err != nil {
			return nil, c.fail(ctx, "fill death chapter", c.cols.BookOfDeath, fmt.Errorf("row %d: %w", i, err))
		}
		// The sentinel means the intro installment is unknown.
		introBook := intro[i]
		if k == c.counts.Sentinel() {
			introBook = dataset.Null()
		}
		if filledIntro[i], err = FillChapter(introBook, introCh[i], c.counts); err != nil {
			return nil, c.fail(ctx, "fill intro chapter", c.cols.Intro, fmt.Errorf("row %d: %w", i, err))
		}

		normalized[i] = NormalizeAffiliation(raw[i], c.aliases)
		f, ok := model.ParseFaction(normalized[i])
		faction[i] = string(f)
		keep[i] = ok
	}

	out := in.Clone()
	for _, set := range []struct {
		name string
		vals []float64
	}{
		{c.cols.Intro, intro},
		{c.cols.DeathChapter, filledDeath},
		{c.cols.IntroChapter, filledIntro},
	} {
		if err := out.SetFloats(set.name, set.vals); err != nil {
			return nil, err
		}
	}
	if err := out.SetStrings(c.cols.Affiliation, normalized); err != nil {
		return nil, err
	}
	if err := out.SetStrings(c.cols.Consolidated, faction); err != nil {
		return nil, err
	}
	out, err = out.Filter(keep)
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "base cleaned",
		logger.Int("rows_in", n),
		logger.Int("rows_out", out.Len()),
		logger.Int("dropped_faction", n-out.Len()),
	)
	return out, nil
}

func (c *Cleaner) fail(ctx context.Context, step, key string, err error) error {
	c.logger.Error(ctx, "clean failed", logger.String("step", step), logger.String("key", key), logger.Error(err))
	return fmt.Errorf("clean: %s: %w", step, err)
}
