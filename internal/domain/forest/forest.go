// Package forest implements a seeded random-forest classifier built from CART
// trees. Fitting is deterministic for a fixed seed, and a fitted forest
// serializes to JSON.
package forest

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/okian/gotsim/internal/domain/failure"
)

// Forest is a random-forest classifier. The zero value is not usable; call New.
type Forest struct {
	Params    Params `json:"params"`
	Classes   []int  `json:"classes"`    // class labels in ascending order
	NFeatures int    `json:"n_features"` // width of every input row
	Trees     []Tree `json:"trees"`
}

// New creates an unfitted forest with DefaultParams modified by opts.
func New(opts ...Option) (*Forest, error) {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Forest{Params: p}, nil
}

// Fit trains the forest on X (rows of features) and class labels y.
func (f *Forest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: no training rows", failure.ErrDegenerate)
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", failure.ErrSchema, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("%w: no features", failure.ErrDegenerate)
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", failure.ErrSchema, i, len(row), width)
		}
	}
	mtry, err := f.Params.featuresPerSplit(width)
	if err != nil {
		return err
	}

	classes, index := encode(y)
	yi := make([]int, len(y))
	for i, v := range y {
		yi[i] = index[v]
	}
	cw := f.classWeights(yi, len(classes))

	rng := rand.New(rand.NewSource(f.Params.Seed)) //nolint:gosec // reproducible fitting
	trees := make([]Tree, f.Params.NEstimators)
	for t := range trees {
		treeRng := rand.New(rand.NewSource(rng.Int63())) //nolint:gosec // reproducible fitting
		w := make([]float64, len(X))
		if f.Params.Bootstrap {
			for range X {
				w[treeRng.Intn(len(X))]++
			}
		} else {
			for i := range w {
				w[i] = 1
			}
		}
		idx := make([]int, 0, len(X))
		for i := range w {
			w[i] *= cw[yi[i]]
			if w[i] > 0 {
				idx = append(idx, i)
			}
		}
		b := &builder{
			x: X, y: yi, w: w,
			classes:  len(classes),
			features: width,
			mtry:     mtry,
			params:   f.Params,
			rng:      treeRng,
			tree:     &trees[t],
		}
		b.grow(idx, 0)
	}

	f.Classes = classes
	f.NFeatures = width
	f.Trees = trees
	return nil
}

// classWeights returns 1 per class, or n/(k*count) per class when balanced.
func (f *Forest) classWeights(y []int, k int) []float64 {
	out := make([]float64, k)
	for i := range out {
		out[i] = 1
	}
	if f.Params.ClassWeight != ClassWeightBalanced {
		return out
	}
	counts := make([]float64, k)
	for _, c := range y {
		counts[c]++
	}
	for i, c := range counts {
		if c > 0 {
			out[i] = float64(len(y)) / (float64(k) * c)
		}
	}
	return out
}

func encode(y []int) ([]int, map[int]int) {
	seen := make(map[int]bool)
	var classes []int
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Ints(classes)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return classes, index
}

// PredictProba returns the averaged class probabilities per row, columns
// ordered as Classes.
func (f *Forest) PredictProba(X [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, x := range X {
		if len(x) != f.NFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d", failure.ErrSchema, i, len(x), f.NFeatures)
		}
		p := make([]float64, len(f.Classes))
		for t := range f.Trees {
			for c, v := range f.Trees[t].proba(x) {
				p[c] += v
			}
		}
		for c := range p {
			p[c] /= float64(len(f.Trees))
		}
		out[i] = p
	}
	return out, nil
}

// Predict returns the most probable class label per row. Ties go to the
// lower label.
func (f *Forest) Predict(X [][]float64) ([]int, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		best := 0
		for c := range p {
			if p[c] > p[best] {
				best = c
			}
		}
		out[i] = f.Classes[best]
	}
	return out, nil
}
