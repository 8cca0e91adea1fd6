// Package scoring builds the offline score table: every combination of the
// binary model inputs, scored once and annotated with user-facing text.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// Output columns.
const (
	ColumnScore      = "score"
	ColumnPrediction = "prediction"
	ColumnRemarks    = "remarks"
	ColumnID         = "id"
)

// Default scoring configuration constants.
const (
	defaultMaxFeatures = 20
)

// Predictor abstracts the fitted model.
type Predictor interface {
	Predict(X [][]float64) ([]int, error)
}

// Model is a Predictor that knows its trained column order and codebook.
type Model interface {
	Predictor
	FeatureNames() []string
	Codebook() (model.Codebook, error)
}

// Enumerate returns the 2^N rows of the cartesian product of {0,1} over
// features. The first feature varies slowest.
func Enumerate(features []string) (*dataset.Frame, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no features to enumerate", failure.ErrConfig)
	}
	seen := make(map[string]bool, len(features))
	for _, name := range features {
		if seen[name] {
			return nil, fmt.Errorf("%w: feature %q listed twice", failure.ErrConfig, name)
		}
		seen[name] = true
	}
	if len(features) > 62 {
		return nil, fmt.Errorf("%w: %d features cannot be enumerated", failure.ErrConfig, len(features))
	}

	n := len(features)
	rows := 1 << n
	f := dataset.New(rows)
	for j, name := range features {
		shift := n - 1 - j
		vals := make([]float64, rows)
		for r := range vals {
			vals[r] = float64(r>>shift&1)
		}
		if err := f.SetFloats(name, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Score predicts every row using the named columns in that order and adds
// the class code as ColumnScore.
func Score(f *dataset.Frame, features []string, p Predictor) (*dataset.Frame, error) {
	X, err := f.Matrix(features)
	if err != nil {
		return nil, err
	}
	pred, err := p.Predict(X)
	if err != nil {
		return nil, err
	}
	codes := make([]float64, len(pred))
	for i, c := range pred {
		codes[i] = float64(c)
	}
	out := f.Clone()
	if err := out.SetFloats(ColumnScore, codes); err != nil {
		return nil, err
	}
	return out, nil
}

// Annotate maps each predicted class onto its prediction and remark text.
// A class missing from either mapping fails the row.
func Annotate(f *dataset.Frame, labels, remarks map[int]string) (*dataset.Frame, error) {
	scores, err := f.Floats(ColumnScore)
	if err != nil {
		return nil, err
	}
	pred := make([]string, len(scores))
	rem := make([]string, len(scores))
	for i, s := range scores {
		code := int(s)
		label, ok := labels[code]
		if !ok {
			return nil, fmt.Errorf("%w: row %d: class %d has no prediction text", failure.ErrLookup, i, code)
		}
		remark, ok := remarks[code]
		if !ok {
			return nil, fmt.Errorf("%w: row %d: class %d has no remark", failure.ErrLookup, i, code)
		}
		pred[i], rem[i] = label, remark
	}
	out := f.Clone()
	if err := out.SetStrings(ColumnPrediction, pred); err != nil {
		return nil, err
	}
	if err := out.SetStrings(ColumnRemarks, rem); err != nil {
		return nil, err
	}
	return out, nil
}

// AddID appends the row position as ColumnID.
func AddID(f *dataset.Frame) (*dataset.Frame, error) {
	ids := make([]float64, f.Len())
	for i := range ids {
		ids[i] = float64(i)
	}
	out := f.Clone()
	if err := out.SetFloats(ColumnID, ids); err != nil {
		return nil, err
	}
	return out, nil
}

// Scorer produces the offline score table. It is safe for concurrent use.
type Scorer struct {
	features    []string
	maxFeatures int
	labels      map[int]string
	remarks     map[int]string
	logger      logger.Logger
}

// New creates a Scorer enumerating the given binary features.
func New(features []string, opts ...Option) *Scorer {
	s := &Scorer{
		features:    append([]string(nil), features...),
		maxFeatures: defaultMaxFeatures,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run enumerates, scores and annotates. The enumerated features must be
// exactly the model's trained feature set.
func (s *Scorer) Run(ctx context.Context, m Model) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.features) > s.maxFeatures {
		return nil, fmt.Errorf("%w: %d features exceed the cap of %d", failure.ErrConfig, len(s.features), s.maxFeatures)
	}
	trained := m.FeatureNames()
	if err := sameFeatures(s.features, trained); err != nil {
		s.logger.Error(ctx, "offline scoring failed", logger.Error(err))
		return nil, err
	}

	f, err := Enumerate(s.features)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "offline score base created", logger.Int("rows", f.Len()))

	if f, err = Score(f, trained, m); err != nil {
		s.logger.Error(ctx, "offline scoring failed", logger.Error(err))
		return nil, fmt.Errorf("score: %w", err)
	}

	labels, remarks := s.labels, s.remarks
	if labels == nil || remarks == nil {
		cb, err := m.Codebook()
		if err != nil {
			return nil, err
		}
		if labels == nil {
			labels = cb.Labels()
		}
		if remarks == nil {
			remarks = cb.Remarks()
		}
	}
	if f, err = Annotate(f, labels, remarks); err != nil {
		s.logger.Error(ctx, "missing key in prediction or remark mapping", logger.Error(err))
		return nil, fmt.Errorf("annotate: %w", err)
	}
	if f, err = AddID(f); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "offline data scored", logger.Int("rows", f.Len()))
	return f, nil
}

func sameFeatures(enumerated, trained []string) error {
	if len(enumerated) != len(trained) {
		return fmt.Errorf("%w: enumerating %v but the model was trained on %v", failure.ErrSchema, enumerated, trained)
	}
	set := make(map[string]bool, len(trained))
	for _, name := range trained {
		set[name] = true
	}
	for _, name := range enumerated {
		if !set[name] {
			return fmt.Errorf("%w: feature %q is not a model input", failure.ErrSchema, name)
		}
	}
	return nil
}

// Predictions converts a score table into store rows.
func Predictions(f *dataset.Frame, features []string) ([]model.Prediction, error) {
	cols := make([][]float64, len(features))
	for j, name := range features {
		vals, err := f.Floats(name)
		if err != nil {
			return nil, err
		}
		cols[j] = vals
	}
	scores, err := f.Floats(ColumnScore)
	if err != nil {
		return nil, err
	}
	ids, err := f.Floats(ColumnID)
	if err != nil {
		return nil, err
	}
	labels, err := f.Strings(ColumnPrediction)
	if err != nil {
		return nil, err
	}
	remarks, err := f.Strings(ColumnRemarks)
	if err != nil {
		return nil, err
	}

	out := make([]model.Prediction, f.Len())
	for i := range out {
		feats := make(map[string]int, len(features))
		for j, name := range features {
			v := cols[j][i]
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: row %d: feature %q is %v, want 0 or 1", failure.ErrType, i, name, v)
			}
			feats[name] = int(v)
		}
		if math.IsNaN(scores[i]) || math.IsNaN(ids[i]) {
			return nil, fmt.Errorf("%w: row %d has a null score or id", failure.ErrType, i)
		}
		out[i] = model.Prediction{
			ID:         int(ids[i]),
			Features:   feats,
			Score:      int(scores[i]),
			Prediction: labels[i],
			Remarks:    remarks[i],
		}
	}
	return out, nil
}
