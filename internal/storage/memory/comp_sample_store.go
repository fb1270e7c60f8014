package memory

import (
	"context"
	"sync"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// CompSampleStore is an in-memory implementation of
// storage.CompSampleStore, used in tests and when no analytics sink is
// configured.
type CompSampleStore struct {
	mu      sync.RWMutex
	samples []*domain.CompSample
}

// NewCompSampleStore creates a new in-memory comp sample store.
func NewCompSampleStore() *CompSampleStore {
	return &CompSampleStore{}
}

var _ storage.CompSampleStore = (*CompSampleStore)(nil)

// InsertBulk adds a batch of samples.
func (s *CompSampleStore) InsertBulk(_ context.Context, samples []*domain.CompSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		if sample == nil {
			return storage.ErrInvalidInput
		}
		cp := *sample
		s.samples = append(s.samples, &cp)
	}
	return nil
}

// Samples returns a copy of everything recorded so far.
func (s *CompSampleStore) Samples() []*domain.CompSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CompSample, 0, len(s.samples))
	for _, sample := range s.samples {
		cp := *sample
		result = append(result, &cp)
	}
	return result
}
