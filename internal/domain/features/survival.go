package features

import (
	"math"

	"github.com/okian/gotsim/internal/domain/model"
)

// Record holds the cleaned fields survival is computed from. Null values are NaN.
type Record struct {
	Intro        float64 // installment of introduction
	Death        float64 // installment of death
	IntroChapter float64
	DeathChapter float64
}

// ChaptersSurvived returns how many chapters of installment k the character
// was alive for. The cases are checked in this order:
//
//	introduced and died in k:         death chapter - intro chapter
//	introduced in k:                  chapters in k - intro chapter
//	introduced before k, alive after: chapters in k
//	died in k:                        death chapter
//	otherwise:                        0
func ChaptersSurvived(r Record, k int, counts model.ChapterCounts) (float64, error) {
	total, err := counts.Chapters(k)
	if err != nil {
		return 0, err
	}
	book := float64(k)
	switch {
	case r.Intro == book && r.Death == book:
		return r.DeathChapter - r.IntroChapter, nil
	case r.Intro == book:
		return total - r.IntroChapter, nil
	case r.Intro < book && (r.Death > book || math.IsNaN(r.Death)):
		return total, nil
	case r.Death == book:
		return r.DeathChapter, nil
	default:
		return 0, nil
	}
}

// Thresholds are the inclusive upper bounds of the low and mid buckets.
type Thresholds struct {
	Low float64
	Mid float64
}

// DefaultThresholds returns 100 and 200 chapters.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 100, Mid: 200}
}

// Bucket returns the survival bucket of v. Bounds are closed on the lower class.
func (t Thresholds) Bucket(v float64) string {
	switch {
	case v <= t.Low:
		return model.BucketLow
	case v <= t.Mid:
		return model.BucketMid
	default:
		return model.BucketHigh
	}
}

// Bucket applies the default thresholds.
func Bucket(v float64) string {
	return DefaultThresholds().Bucket(v)
}
