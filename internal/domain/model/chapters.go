// Package model contains the domain values shared by the pipeline stages.
package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/gotsim/internal/domain/failure"
)

// ChapterCounts maps installment number (1..K) to the number of chapters in it.
// It is validated once at construction and never changes afterwards.
type ChapterCounts struct {
	counts []float64 // counts[k-1] is installment k
}

// NewChapterCounts validates m for completeness over 1..K, where K is the
// largest key, and positivity of every count.
func NewChapterCounts(m map[int]float64) (ChapterCounts, error) {
	if len(m) == 0 {
		return ChapterCounts{}, fmt.Errorf("%w: chapter counts are empty", failure.ErrConfig)
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	if keys[0] < 1 {
		return ChapterCounts{}, fmt.Errorf("%w: installment %d is out of range", failure.ErrSchema, keys[0])
	}
	k := keys[len(keys)-1]
	counts := make([]float64, k)
	for i := 1; i <= k; i++ {
		v, ok := m[i]
		if !ok {
			return ChapterCounts{}, fmt.Errorf("%w: chapter count for installment %d not found", failure.ErrSchema, i)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return ChapterCounts{}, fmt.Errorf("%w: chapter count for installment %d is %v", failure.ErrType, i, v)
		}
		counts[i-1] = v
	}
	return ChapterCounts{counts: counts}, nil
}

// Installments returns K.
func (c ChapterCounts) Installments() int { return len(c.counts) }

// Sentinel is the installment number used when a character was never flagged
// as appearing in any installment.
func (c ChapterCounts) Sentinel() int { return len(c.counts) + 1 }

// Chapters returns the chapter count of installment k.
func (c ChapterCounts) Chapters(k int) (float64, error) {
	if k < 1 || k > len(c.counts) {
		return 0, fmt.Errorf("%w: chapter count for installment %d not found", failure.ErrSchema, k)
	}
	return c.counts[k-1], nil
}

// Installment converts a float cell holding an installment number into an int.
// ok is false for null cells.
func Installment(v float64) (k int, ok bool, err error) {
	if math.IsNaN(v) {
		return 0, false, nil
	}
	if math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false, fmt.Errorf("%w: installment %v is not a whole number", failure.ErrType, v)
	}
	return int(v), true, nil
}
