package training

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/forest"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// Default training configuration constants.
const (
	defaultTarget       = "survive_class_id"
	defaultTestFraction = 0.4
)

// DefaultFeatures are the model inputs: demographic flags, merged profile
// attributes and one indicator per faction.
func DefaultFeatures() []string {
	return []string{
		"Gender", "Nobility", "boolDeadRelations", "isPopular", "isMarried",
		"HouseBaratheon", "HouseLannister", "HouseStark", "HouseTargaryen", "NightsWatch", "Wildling",
	}
}

// Trainer fits and evaluates a forest on the feature table.
type Trainer struct {
	features     []string
	target       string
	testFraction float64
	params       forest.Params
	codebook     model.Codebook
	runID        string
	logger       logger.Logger
}

// New creates a Trainer for the given feature set and codebook.
func New(features []string, codebook model.Codebook, opts ...Option) *Trainer {
	t := &Trainer{
		features:     append([]string(nil), features...),
		target:       defaultTarget,
		testFraction: defaultTestFraction,
		params:       forest.DefaultParams(),
		codebook:     codebook,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train validates f, splits it, fits the forest and evaluates it.
func (t *Trainer) Train(ctx context.Context, f *dataset.Frame) (*Artifact, Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, Evaluation{}, err
	}
	if err := Validate(f, t.features, t.target); err != nil {
		return nil, Evaluation{}, t.fail(ctx, "validate", err)
	}
	t.logger.Info(ctx, "target and input features found", logger.Int("rows", f.Len()), logger.Strings("features", t.features))

	X, err := f.Matrix(t.features)
	if err != nil {
		return nil, Evaluation{}, t.fail(ctx, "matrix", err)
	}
	y, err := Labels(f, t.target)
	if err != nil {
		return nil, Evaluation{}, t.fail(ctx, "labels", err)
	}

	p, err := Split(X, y, t.testFraction, t.params.Seed)
	if err != nil {
		return nil, Evaluation{}, t.fail(ctx, "split", err)
	}
	t.logger.Info(ctx, "data split", logger.Int("train", len(p.TrainY)), logger.Int("test", len(p.TestY)))

	a, err := Fit(p.TrainX, p.TrainY, t.features, t.features, t.params, t.codebook)
	if err != nil {
		return nil, Evaluation{}, t.fail(ctx, "fit", err)
	}
	a.Target = t.target
	if t.runID != "" {
		a.RunID = t.runID
	}
	t.logger.Info(ctx, "model fit successfully", logger.String("run_id", a.RunID), logger.Int("trees", len(a.Forest.Trees)))

	ev, err := Evaluate(a, p.TestX, p.TestY)
	if err != nil {
		return nil, Evaluation{}, t.fail(ctx, "evaluate", err)
	}
	t.logger.Info(ctx, "model evaluated", logger.Float64("accuracy", ev.Accuracy))
	return a, ev, nil
}

// Fit trains a forest after checking that the training columns are exactly
// the expected feature set, ignoring order.
func Fit(trainX [][]float64, trainY []int, featureNames, expected []string, p forest.Params, cb model.Codebook) (*Artifact, error) {
	if missing, extra := sameSet(featureNames, expected); len(missing) > 0 || len(extra) > 0 {
		return nil, fmt.Errorf("%w: incorrect model features, missing %v, unexpected %v", failure.ErrDegenerate, missing, extra)
	}
	for _, y := range trainY {
		if _, err := cb.Bucket(y); err != nil {
			return nil, err
		}
	}
	rf, err := forest.New(forest.WithParams(p))
	if err != nil {
		return nil, err
	}
	if err := rf.Fit(trainX, trainY); err != nil {
		return nil, err
	}
	if rf.NFeatures != len(featureNames) {
		return nil, fmt.Errorf("%w: %d feature names for %d columns", failure.ErrSchema, len(featureNames), rf.NFeatures)
	}
	return &Artifact{
		Version:   ArtifactVersion,
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Features:  append([]string(nil), featureNames...),
		Target:    defaultTarget,
		Classes:   cb.Classes(),
		Forest:    rf,
	}, nil
}

// Evaluation holds test-set performance. Confusion[i][j] counts rows of
// class Codes[i] predicted as Codes[j].
type Evaluation struct {
	Accuracy  float64
	Codes     []int
	Confusion [][]int
}

// Evaluate scores the held-out rows.
func Evaluate(a *Artifact, testX [][]float64, testY []int) (Evaluation, error) {
	if len(testX) == 0 {
		return Evaluation{}, fmt.Errorf("%w: no test rows", failure.ErrDegenerate)
	}
	pred, err := a.Predict(testX)
	if err != nil {
		return Evaluation{}, err
	}
	cb, err := a.Codebook()
	if err != nil {
		return Evaluation{}, err
	}
	codes := cb.Codes()
	pos := make(map[int]int, len(codes))
	for i, c := range codes {
		pos[c] = i
	}
	ev := Evaluation{Codes: codes, Confusion: make([][]int, len(codes))}
	for i := range ev.Confusion {
		ev.Confusion[i] = make([]int, len(codes))
	}
	correct := 0
	for i := range pred {
		r, ok := pos[testY[i]]
		if !ok {
			return Evaluation{}, fmt.Errorf("%w: test row %d has class %d outside the codebook", failure.ErrLookup, i, testY[i])
		}
		c, ok := pos[pred[i]]
		if !ok {
			return Evaluation{}, fmt.Errorf("%w: predicted class %d outside the codebook", failure.ErrLookup, pred[i])
		}
		ev.Confusion[r][c]++
		if r == c {
			correct++
		}
	}
	ev.Accuracy = float64(correct) / float64(len(pred))
	return ev, nil
}

// Report renders the accuracy and the confusion matrix labelled by bucket.
func (e Evaluation) Report(cb model.Codebook) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy on test: %0.3f\n\nConfusion Matrix:\n", e.Accuracy)
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	label := func(code int) string {
		if s, err := cb.Bucket(code); err == nil {
			return s
		}
		return fmt.Sprint(code)
	}
	fmt.Fprint(w, "\t")
	for _, c := range e.Codes {
		fmt.Fprintf(w, "Predicted %s\t", label(c))
	}
	fmt.Fprintln(w)
	for i, c := range e.Codes {
		fmt.Fprintf(w, "Actual %s\t", label(c))
		for _, n := range e.Confusion[i] {
			fmt.Fprintf(w, "%d\t", n)
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
	return b.String()
}

func (t *Trainer) fail(ctx context.Context, step string, err error) error {
	t.logger.Error(ctx, "training failed", logger.String("step", step), logger.Error(err))
	return fmt.Errorf("train: %s: %w", step, err)
}
