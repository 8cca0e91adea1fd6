// Package features turns cleaned character records into the model feature
// table: per-installment survival, the bucketed target, profile attributes
// merged from the auxiliary table, imputation and faction indicators.
package features

import (
	"context"
	"fmt"

	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// Columns names the columns the featurizer reads and derives.
type Columns struct {
	Intro        string
	BookOfDeath  string
	DeathChapter string
	IntroChapter string
	Faction      string
	// Survival holds one derived column per installment, Survival[k-1] for k.
	Survival []string
	Total    string
	Label    string
	Target   string
	// Name is the join key in the base table, ProfileKey the one in the
	// auxiliary table. Profile lists the auxiliary columns copied over.
	Name       string
	ProfileKey string
	Profile    []string
}

// DefaultColumns returns the column names used by the cleaned base table and
// character-profile.csv.
func DefaultColumns() Columns {
	return Columns{
		Intro:        "book_intro",
		BookOfDeath:  "Book of Death",
		DeathChapter: "Death Chapter",
		IntroChapter: "Book Intro Chapter",
		Faction:      "Allegiance",
		Survival:     []string{"GoT_chapters", "CoK_chapters", "SoS_chapters", "FfC_chapters", "DwD_chapters"},
		Total:        "chapters_survived",
		Label:        "survive_class",
		Target:       "survive_class_id",
		Name:         "Name",
		ProfileKey:   "name",
		Profile:      []string{"isMarried", "boolDeadRelations", "isPopular"},
	}
}

// Featurizer derives the feature table. It is safe for concurrent use.
type Featurizer struct {
	counts     model.ChapterCounts
	codebook   model.Codebook
	cols       Columns
	thresholds Thresholds
	logger     logger.Logger
}

// New creates a Featurizer. The codebook fixes the class code of every bucket.
func New(counts model.ChapterCounts, codebook model.Codebook, opts ...Option) *Featurizer {
	f := &Featurizer{
		counts:     counts,
		codebook:   codebook,
		cols:       DefaultColumns(),
		thresholds: DefaultThresholds(),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Featurize builds the feature table from the cleaned base table and the
// auxiliary profile table. Rows with a negative or undefined total survival
// are dropped. Any null or infinite value left after imputation is fatal.
func (f *Featurizer) Featurize(ctx context.Context, base, aux *dataset.Frame) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if base == nil || aux == nil {
		return nil, fmt.Errorf("%w: featurize: nil frame", failure.ErrType)
	}
	rowsIn := base.Len()

	f.logger.Info(ctx, "computing chapters survived per installment", logger.Int("installments", f.counts.Installments()))
	out, err := f.survival(base)
	if err != nil {
		return nil, f.fail(ctx, "chapters survived", err)
	}

	f.logger.Info(ctx, "computing total chapters survived")
	out, dropped, err := f.total(out)
	if err != nil {
		return nil, f.fail(ctx, "total survival", err)
	}

	f.logger.Info(ctx, "creating target classes")
	if out, err = f.target(out); err != nil {
		return nil, f.fail(ctx, "target class", err)
	}

	f.logger.Info(ctx, "merging character profile information")
	if out, err = f.MergeAuxiliary(ctx, out, aux); err != nil {
		return nil, f.fail(ctx, "merge auxiliary", err)
	}

	f.logger.Info(ctx, "imputing missing information with 0")
	out = Impute(out)

	f.logger.Info(ctx, "creating faction indicators", logger.String("column", f.cols.Faction))
	out, cats, err := OneHot(out, f.cols.Faction)
	if err != nil {
		return nil, f.fail(ctx, "one-hot", err)
	}

	if bad := out.NonFinite(); len(bad) > 0 {
		f.logger.Error(ctx, "features computed with missing values", logger.Strings("columns", bad))
		return nil, fmt.Errorf("%w: featurize: columns %v", failure.ErrMissingValues, bad)
	}

	f.logger.Info(ctx, "features created",
		logger.Int("rows_in", rowsIn),
		logger.Int("rows_out", out.Len()),
		logger.Int("dropped_negative", dropped),
		logger.Strings("factions", cats),
	)
	return out, nil
}

func (f *Featurizer) survival(base *dataset.Frame) (*dataset.Frame, error) {
	if len(f.cols.Survival) != f.counts.Installments() {
		return nil, fmt.Errorf("%w: %d survival columns for %d installments",
			failure.ErrConfig, len(f.cols.Survival), f.counts.Installments())
	}
	intro, err := base.Floats(f.cols.Intro)
	if err != nil {
		return nil, err
	}
	death, err := base.Floats(f.cols.BookOfDeath)
	if err != nil {
		return nil, err
	}
	introCh, err := base.Floats(f.cols.IntroChapter)
	if err != nil {
		return nil, err
	}
	deathCh, err := base.Floats(f.cols.DeathChapter)
	if err != nil {
		return nil, err
	}

	out := base.Clone()
	for idx, name := range f.cols.Survival {
		k := idx + 1
		vals := make([]float64, base.Len())
		for i := range vals {
			r := Record{Intro: intro[i], Death: death[i], IntroChapter: introCh[i], DeathChapter: deathCh[i]}
			v, err := ChaptersSurvived(r, k, f.counts)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", name, i, err)
			}
			vals[i] = v
		}
		if err := out.SetFloats(name, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// total sums the survival columns and drops rows whose total is negative or
// undefined.
func (f *Featurizer) total(in *dataset.Frame) (*dataset.Frame, int, error) {
	sum := make([]float64, in.Len())
	for _, name := range f.cols.Survival {
		vals, err := in.Floats(name)
		if err != nil {
			return nil, 0, err
		}
		for i, v := range vals {
			sum[i] += v
		}
	}
	out := in.Clone()
	if err := out.SetFloats(f.cols.Total, sum); err != nil {
		return nil, 0, err
	}
	keep := make([]bool, len(sum))
	dropped := 0
	for i, v := range sum {
		// NaN fails the comparison.
		keep[i] = v >= 0
		if !keep[i] {
			dropped++
		}
	}
	out, err := out.Filter(keep)
	if err != nil {
		return nil, 0, err
	}
	return out, dropped, nil
}

func (f *Featurizer) target(in *dataset.Frame) (*dataset.Frame, error) {
	totals, err := in.Floats(f.cols.Total)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(totals))
	codes := make([]float64, len(totals))
	for i, v := range totals {
		labels[i] = f.thresholds.Bucket(v)
		code, err := f.codebook.Code(labels[i])
		if err != nil {
			return nil, err
		}
		codes[i] = float64(code)
	}
	out := in.Clone()
	if err := out.SetStrings(f.cols.Label, labels); err != nil {
		return nil, err
	}
	if err := out.SetFloats(f.cols.Target, codes); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeAuxiliary left-joins the profile columns of aux onto base by name.
// Unmatched rows get null profile values. When aux repeats a name the first
// row wins.
func (f *Featurizer) MergeAuxiliary(ctx context.Context, base, aux *dataset.Frame) (*dataset.Frame, error) {
	names, err := base.Strings(f.cols.Name)
	if err != nil {
		return nil, err
	}
	keys, err := aux.Strings(f.cols.ProfileKey)
	if err != nil {
		return nil, err
	}
	profile := make([][]float64, len(f.cols.Profile))
	for j, col := range f.cols.Profile {
		if profile[j], err = aux.Floats(col); err != nil {
			return nil, err
		}
	}

	index := make(map[string]int, len(keys))
	dup := 0
	for i, k := range keys {
		if _, ok := index[k]; ok {
			dup++
			continue
		}
		index[k] = i
	}
	if dup > 0 {
		f.logger.Warn(ctx, "duplicate names in profile table, first row kept",
			logger.String("key", f.cols.ProfileKey), logger.Int("duplicates", dup))
	}

	out := base.Clone()
	matched := 0
	for j, col := range f.cols.Profile {
		vals := make([]float64, len(names))
		for i, name := range names {
			src, ok := index[name]
			if !ok {
				vals[i] = dataset.Null()
				continue
			}
			if j == 0 {
				matched++
			}
			vals[i] = profile[j][src]
		}
		if err := out.SetFloats(col, vals); err != nil {
			return nil, err
		}
	}
	f.logger.Debug(ctx, "profile merged", logger.Int("matched", matched), logger.Int("rows", len(names)))
	return out, nil
}

func (f *Featurizer) fail(ctx context.Context, step string, err error) error {
	f.logger.Error(ctx, "featurize failed", logger.String("step", step), logger.Error(err))
	return fmt.Errorf("featurize: %s: %w", step, err)
}
