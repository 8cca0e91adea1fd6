package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// maxMaskFeatures bounds the feature count so a combination fits a uint64 key.
const maxMaskFeatures = 62

// Snapshot is an immutable view of the stored rows.
type Snapshot struct {
	rows   []model.Prediction // sorted by id
	byMask map[uint64]int     // combination -> index of the lowest-id row
}

// MemoryStore keeps predictions in memory. Readers never block: every write
// builds a new Snapshot and publishes it atomically.
type MemoryStore struct {
	features []string
	opts     options

	mu       sync.Mutex // serializes writers
	snapshot atomic.Pointer[Snapshot]
}

// NewMemoryStore creates an empty store over the given features.
func NewMemoryStore(features []string, opts ...Option) (*MemoryStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(features) == 0 || len(features) > maxMaskFeatures {
		return nil, fmt.Errorf("%w: memory store needs 1..%d features, got %d", failure.ErrConfig, maxMaskFeatures, len(features))
	}
	s := &MemoryStore{features: append([]string(nil), features...), opts: o}
	s.snapshot.Store(&Snapshot{byMask: map[uint64]int{}})
	return s, nil
}

func (s *MemoryStore) mask(combination map[string]int) uint64 {
	var m uint64
	for i, f := range s.features {
		if combination[f] == 1 {
			m |= 1 << uint(i)
		}
	}
	return m
}

// Replace publishes a new snapshot holding preds, plus the current rows when
// truncate is false.
func (s *MemoryStore) Replace(ctx context.Context, preds []model.Prediction, truncate bool) error {
	start := time.Now()
	for _, p := range preds {
		if err := checkPrediction(s.features, p); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []model.Prediction
	if !truncate {
		rows = append(rows, s.snapshot.Load().rows...)
	}
	rows = append(rows, preds...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	next := &Snapshot{rows: rows, byMask: make(map[uint64]int, len(rows))}
	for i, p := range rows {
		if i > 0 && rows[i-1].ID == p.ID {
			return fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
		}
		m := s.mask(p.Features)
		if _, ok := next.byMask[m]; !ok {
			next.byMask[m] = i
		}
	}
	s.snapshot.Store(next)

	s.opts.metrics.RecordStoreWrite(len(preds), time.Since(start))
	s.opts.metrics.SetStoreRecords(len(rows))
	s.opts.logger.Debug(ctx, "snapshot published", logger.Int("rows", len(rows)), logger.Bool("truncate", truncate))
	return nil
}

// Lookup returns the lowest-id row with the given combination.
func (s *MemoryStore) Lookup(_ context.Context, combination map[string]int) (model.Prediction, error) {
	if err := checkCombination(s.features, combination); err != nil {
		return model.Prediction{}, err
	}
	start := time.Now()
	defer func() { s.opts.metrics.RecordStoreQuery("lookup", time.Since(start)) }()

	snap := s.snapshot.Load()
	i, ok := snap.byMask[s.mask(combination)]
	if !ok {
		s.opts.metrics.RecordLookup("miss")
		return model.Prediction{}, ErrNotFound
	}
	s.opts.metrics.RecordLookup("hit")
	return snap.rows[i], nil
}

// First returns the lowest-id row.
func (s *MemoryStore) First(context.Context) (model.Prediction, error) {
	snap := s.snapshot.Load()
	if len(snap.rows) == 0 {
		return model.Prediction{}, ErrNotFound
	}
	return snap.rows[0], nil
}

// Count returns the number of rows in the current snapshot.
func (s *MemoryStore) Count(context.Context) (int, error) {
	return len(s.snapshot.Load().rows), nil
}
