package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// OpportunityStore is an in-memory implementation of
// storage.OpportunityStore. Listing activity is resolved through the
// shared ListingStore so cascade deactivation sees the same state the
// reconciler wrote.
type OpportunityStore struct {
	mu            sync.RWMutex
	opportunities map[int64]*domain.Opportunity
	listings      *ListingStore
	nextID        int64
}

// NewOpportunityStore creates a new in-memory opportunity store backed by
// the given listing store for activity lookups.
func NewOpportunityStore(listings *ListingStore) *OpportunityStore {
	return &OpportunityStore{
		opportunities: make(map[int64]*domain.Opportunity),
		listings:      listings,
		nextID:        1,
	}
}

var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// Insert adds a new opportunity.
func (s *OpportunityStore) Insert(_ context.Context, o *domain.Opportunity) error {
	if o == nil || o.ListingID == 0 || o.IdentityID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextID
	s.nextID++
	stored := *o
	s.opportunities[stored.ID] = &stored
	return nil
}

// Update overwrites an existing opportunity by ID.
func (s *OpportunityStore) Update(_ context.Context, o *domain.Opportunity) error {
	if o == nil || o.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.opportunities[o.ID]; !exists {
		return storage.ErrNotFound
	}
	stored := *o
	s.opportunities[stored.ID] = &stored
	return nil
}

// GetActiveByListing retrieves the active opportunity for a listing.
func (s *OpportunityStore) GetActiveByListing(_ context.Context, listingID int64) (*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.opportunities {
		if o.ListingID == listingID && o.IsActive {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetActive returns all active opportunities, highest discount first.
func (s *OpportunityStore) GetActive(_ context.Context) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Opportunity
	for _, o := range s.opportunities {
		if o.IsActive {
			cp := *o
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DiscountPct.GreaterThan(result[j].DiscountPct)
	})
	return result, nil
}

// DeactivateUnverifiedBefore deactivates active opportunities whose last
// verification is older than cutoff.
func (s *OpportunityStore) DeactivateUnverifiedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, o := range s.opportunities {
		if o.IsActive && o.LastVerifiedAt.Before(cutoff) {
			o.IsActive = false
			changed++
		}
	}
	return changed, nil
}

// DeactivateForInactiveListings deactivates active opportunities whose
// listing is no longer active.
func (s *OpportunityStore) DeactivateForInactiveListings(_ context.Context) (int, error) {
	active := make(map[int64]bool)
	if s.listings != nil {
		s.listings.mu.RLock()
		for _, l := range s.listings.listings {
			if l.IsActive {
				active[l.ID] = true
			}
		}
		s.listings.mu.RUnlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, o := range s.opportunities {
		if o.IsActive && !active[o.ListingID] {
			o.IsActive = false
			changed++
		}
	}
	return changed, nil
}
