package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
)

// Impute returns a copy of f with null and infinite float cells set to 0.
func Impute(f *dataset.Frame) *dataset.Frame {
	out := f.Clone()
	for _, name := range out.Names() {
		vals, err := out.Floats(name)
		if err != nil {
			continue // string column
		}
		filled := make([]float64, len(vals))
		for i, v := range vals {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				filled[i] = v
			}
		}
		_ = out.SetFloats(name, filled)
	}
	return out
}

// OneHot returns a copy of f with one 0/1 column per distinct value of the
// string column, sorted by value and appended after the existing columns.
func OneHot(f *dataset.Frame, column string) (*dataset.Frame, []string, error) {
	vals, err := f.Strings(column)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool)
	var cats []string
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			cats = append(cats, v)
		}
	}
	sort.Strings(cats)

	out := f.Clone()
	for _, cat := range cats {
		if cat == column {
			return nil, nil, fmt.Errorf("%w: category %q collides with its source column", failure.ErrSchema, cat)
		}
		ind := make([]float64, len(vals))
		for i, v := range vals {
			if v == cat {
				ind[i] = 1
			}
		}
		if err := out.SetFloats(cat, ind); err != nil {
			return nil, nil, err
		}
	}
	return out, cats, nil
}
