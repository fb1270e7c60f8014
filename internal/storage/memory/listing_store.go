package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

type listingKey struct {
	storefront string
	productID  int64
	variantID  int64
}

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[listingKey]*domain.Listing
	nextID   int64
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		listings: make(map[listingKey]*domain.Listing),
		nextID:   1,
	}
}

var _ storage.ListingStore = (*ListingStore)(nil)

// CountActive returns the number of active listings for a storefront.
func (s *ListingStore) CountActive(_ context.Context, storefront string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for k, l := range s.listings {
		if k.storefront == storefront && l.IsActive {
			count++
		}
	}
	return count, nil
}

// DeactivateAll marks every active listing for a storefront inactive.
func (s *ListingStore) DeactivateAll(_ context.Context, storefront string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for k, l := range s.listings {
		if k.storefront == storefront && l.IsActive {
			l.IsActive = false
			changed++
		}
	}
	return changed, nil
}

// Upsert inserts or updates a listing keyed by
// (storefront, product_id, variant_id).
func (s *ListingStore) Upsert(_ context.Context, l *domain.Listing) (domain.UpsertOutcome, error) {
	if l == nil || l.Storefront == "" || l.ProductID == 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := listingKey{l.Storefront, l.ProductID, l.VariantID}
	existing, exists := s.listings[k]
	if !exists {
		l.ID = s.nextID
		s.nextID++
		l.IsActive = true
		stored := *l
		s.listings[k] = &stored
		return domain.UpsertCreated, nil
	}

	outcome := domain.UpsertUpdated
	if !existing.IsActive {
		outcome = domain.UpsertReactivated
	}

	l.ID = existing.ID
	l.FirstSeen = existing.FirstSeen
	l.IsActive = true
	stored := *l
	s.listings[k] = &stored
	return outcome, nil
}

// GetByNaturalKey retrieves a listing by its natural key.
func (s *ListingStore) GetByNaturalKey(_ context.Context, storefront string, productID, variantID int64) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.listings[listingKey{storefront, productID, variantID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// ActiveTuples returns the distinct (identity, grader, grade) tuples with
// at least one active listing, most recent activity first.
func (s *ListingStore) ActiveTuples(_ context.Context) ([]domain.ListingTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type tupleKey struct {
		identityID int64
		grader     domain.Grader
		grade      int
	}
	latest := make(map[tupleKey]time.Time)
	for _, l := range s.listings {
		if !l.IsActive {
			continue
		}
		k := tupleKey{l.IdentityID, l.Grader, l.Grade}
		if l.LastSeenAt.After(latest[k]) {
			latest[k] = l.LastSeenAt
		}
	}

	tuples := make([]domain.ListingTuple, 0, len(latest))
	for k, seen := range latest {
		tuples = append(tuples, domain.ListingTuple{
			IdentityID: k.identityID,
			Grader:     k.grader,
			Grade:      k.grade,
			LastSeenAt: seen,
		})
	}
	sort.Slice(tuples, func(i, j int) bool {
		return tuples[i].LastSeenAt.After(tuples[j].LastSeenAt)
	})
	return tuples, nil
}

// GetActiveSince returns active listings last seen at or after cutoff.
func (s *ListingStore) GetActiveSince(_ context.Context, cutoff time.Time) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.listings {
		if l.IsActive && !l.LastSeenAt.Before(cutoff) {
			cp := *l
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
