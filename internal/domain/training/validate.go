// Package training validates the feature table, splits it, fits the forest
// and evaluates it on the held-out rows.
package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
)

// Validate checks that f holds every feature and the target, and that the
// target has at least two classes.
func Validate(f *dataset.Frame, features []string, target string) error {
	if f == nil {
		return fmt.Errorf("%w: input is not a table", failure.ErrType)
	}
	var missing []string
	for _, name := range features {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: input features not found: %s", failure.ErrSchema, strings.Join(missing, " "))
	}
	if !f.Has(target) {
		return fmt.Errorf("%w: target column %q not found", failure.ErrSchema, target)
	}
	y, err := Labels(f, target)
	if err != nil {
		return err
	}
	distinct := make(map[int]bool)
	for _, v := range y {
		distinct[v] = true
	}
	if len(distinct) < 2 {
		return fmt.Errorf("%w: target %q has %d distinct values, need at least 2", failure.ErrDegenerate, target, len(distinct))
	}
	return nil
}

// Labels reads an integer class column.
func Labels(f *dataset.Frame, target string) ([]int, error) {
	vals, err := f.Floats(target)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: target %q row %d is %v, want a class code", failure.ErrType, target, i, v)
		}
		out[i] = int(v)
	}
	return out, nil
}

// Partition is a train/test split.
type Partition struct {
	TrainX [][]float64
	TestX  [][]float64
	TrainY []int
	TestY  []int
}

// Split shuffles rows with a seeded permutation and holds out
// ceil(n*testFraction) of them for testing.
func Split(X [][]float64, y []int, testFraction float64, seed int64) (Partition, error) {
	if !(testFraction > 0 && testFraction < 1) {
		return Partition{}, fmt.Errorf("%w: test fraction %v is outside (0,1)", failure.ErrConfig, testFraction)
	}
	if len(X) != len(y) {
		return Partition{}, fmt.Errorf("%w: %d rows but %d labels", failure.ErrSchema, len(X), len(y))
	}
	n := len(X)
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest < 1 || n-nTest < 1 {
		return Partition{}, fmt.Errorf("%w: %d rows cannot be split with test fraction %v", failure.ErrDegenerate, n, testFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n) //nolint:gosec // reproducible split
	var p Partition
	for i, j := range perm {
		if i < nTest {
			p.TestX = append(p.TestX, X[j])
			p.TestY = append(p.TestY, y[j])
		} else {
			p.TrainX = append(p.TrainX, X[j])
			p.TrainY = append(p.TrainY, y[j])
		}
	}
	return p, nil
}

// sameSet reports the names of got missing from want and the extras.
func sameSet(got, want []string) (missing, extra []string) {
	g := make(map[string]bool, len(got))
	for _, s := range got {
		g[s] = true
	}
	w := make(map[string]bool, len(want))
	for _, s := range want {
		w[s] = true
		if !g[s] {
			missing = append(missing, s)
		}
	}
	for s := range g {
		if !w[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return missing, extra
}
