package memory

import (
	"context"
	"sync"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// BenchmarkStore is an in-memory implementation of storage.BenchmarkStore.
// Rows are append-only, like the relational table.
type BenchmarkStore struct {
	mu         sync.RWMutex
	benchmarks []*domain.Benchmark
	nextID     int64
}

// NewBenchmarkStore creates a new in-memory benchmark store.
func NewBenchmarkStore() *BenchmarkStore {
	return &BenchmarkStore{nextID: 1}
}

var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// Insert adds a new benchmark row.
func (s *BenchmarkStore) Insert(_ context.Context, b *domain.Benchmark) error {
	if b == nil || b.IdentityID == 0 || b.DataSource == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.nextID
	s.nextID++
	stored := *b
	s.benchmarks = append(s.benchmarks, &stored)
	return nil
}

// LatestFor retrieves the most recent benchmark for an identity with the
// exact data-source tag.
func (s *BenchmarkStore) LatestFor(_ context.Context, identityID int64, dataSource string) (*domain.Benchmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Benchmark
	for _, b := range s.benchmarks {
		if b.IdentityID != identityID || b.DataSource != dataSource {
			continue
		}
		if latest == nil || b.ComputedAt.After(latest.ComputedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}
