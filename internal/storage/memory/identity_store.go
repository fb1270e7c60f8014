package memory

import (
	"context"
	"sync"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

type identityKey struct {
	key  string
	lang domain.Language
}

// IdentityStore is an in-memory implementation of storage.IdentityStore.
type IdentityStore struct {
	mu     sync.RWMutex
	byKey  map[identityKey]*domain.SearchIdentity
	byID   map[int64]*domain.SearchIdentity
	nextID int64
}

// NewIdentityStore creates a new in-memory identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		byKey:  make(map[identityKey]*domain.SearchIdentity),
		byID:   make(map[int64]*domain.SearchIdentity),
		nextID: 1,
	}
}

// Compile-time interface check.
var _ storage.IdentityStore = (*IdentityStore)(nil)

// Insert adds a new identity. Returns ErrDuplicateKey if
// (normalized_key, language) exists.
func (s *IdentityStore) Insert(_ context.Context, id *domain.SearchIdentity) error {
	if id == nil || id.NormalizedKey == "" || id.Language == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := identityKey{id.NormalizedKey, id.Language}
	if _, exists := s.byKey[k]; exists {
		return storage.ErrDuplicateKey
	}

	id.ID = s.nextID
	s.nextID++

	// Store a copy to prevent external mutation.
	stored := *id
	s.byKey[k] = &stored
	s.byID[stored.ID] = &stored
	return nil
}

// GetByKey retrieves an identity by (normalized_key, language).
func (s *IdentityStore) GetByKey(_ context.Context, key string, lang domain.Language) (*domain.SearchIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byKey[identityKey{key, lang}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *id
	return &cp, nil
}

// GetByID retrieves an identity by its ID.
func (s *IdentityStore) GetByID(_ context.Context, id int64) (*domain.SearchIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *found
	return &cp, nil
}
