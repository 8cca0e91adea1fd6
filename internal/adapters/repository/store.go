// Package repository stores the offline score table and answers lookups by
// feature combination.
package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
)

// DefaultTable is the table the offline score rows are written to.
const DefaultTable = "got_prediction"

// Store provides read/write access to the offline score table.
type Store interface {
	// Replace writes preds. With truncate set, existing rows are removed first
	// in the same transaction.
	Replace(ctx context.Context, preds []model.Prediction, truncate bool) error

	// Lookup returns the row whose features equal combination.
	// Returns ErrNotFound if no row matches.
	Lookup(ctx context.Context, combination map[string]int) (model.Prediction, error)

	// First returns the row with the lowest id.
	First(ctx context.Context) (model.Prediction, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !identifier.MatchString(n) {
			return fmt.Errorf("%w: %w: %q", ErrIdentifier, failure.ErrConfig, n)
		}
	}
	return nil
}

// checkCombination verifies combination names exactly the features and
// every value is binary.
func checkCombination(features []string, combination map[string]int) error {
	if len(combination) != len(features) {
		return fmt.Errorf("%w: got %d features, want %d", ErrInvalidCombination, len(combination), len(features))
	}
	for _, f := range features {
		v, ok := combination[f]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidCombination, f)
		}
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: %s=%d is not 0 or 1", ErrInvalidCombination, f, v)
		}
	}
	return nil
}

// checkPrediction verifies a row carries every feature.
func checkPrediction(features []string, p model.Prediction) error {
	if err := checkCombination(features, p.Features); err != nil {
		return fmt.Errorf("row %d: %w", p.ID, err)
	}
	return nil
}
