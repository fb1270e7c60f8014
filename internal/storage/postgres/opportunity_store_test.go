package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// seedListing inserts an identity plus one active listing and returns the
// listing.
func seedListing(t *testing.T, pool *Pool, key string, productID int64) *domain.Listing {
	t.Helper()
	identityID := seedIdentity(t, pool, key, domain.LanguageEN)
	l := newListing(identityID, productID, "100.00")
	_, err := NewListingStore(pool).Upsert(context.Background(), l)
	require.NoError(t, err)
	return l
}

func newOpportunity(l *domain.Listing, verifiedAt time.Time) *domain.Opportunity {
	return &domain.Opportunity{
		ListingID:      l.ID,
		IdentityID:     l.IdentityID,
		Label:          "Charizard Base Set",
		Title:          l.Title,
		Grader:         l.Grader,
		Grade:          l.Grade,
		StorePrice:     decimal.RequireFromString("100.00"),
		MarketPrice:    decimal.RequireFromString("150.00"),
		DiscountPct:    decimal.RequireFromString("33.33"),
		Profit:         decimal.RequireFromString("50.00"),
		URL:            l.URL,
		InStock:        true,
		IsActive:       true,
		DiscoveredAt:   verifiedAt,
		LastVerifiedAt: verifiedAt,
	}
}

func TestOpportunityStore_InsertUpdateGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOpportunityStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	l := seedListing(t, pool, "charizard base set", 1)

	o := newOpportunity(l, now)
	require.NoError(t, store.Insert(ctx, o))
	assert.NotZero(t, o.ID)

	got, err := store.GetActiveByListing(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.DiscountPct.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, got.Profit.Equal(decimal.RequireFromString("50.00")))

	got.StorePrice = decimal.RequireFromString("95.00")
	got.LastVerifiedAt = now.Add(time.Hour)
	require.NoError(t, store.Update(ctx, got))

	refreshed, err := store.GetActiveByListing(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.StorePrice.Equal(decimal.RequireFromString("95.00")))
	assert.True(t, refreshed.DiscoveredAt.Equal(now), "DiscoveredAt must survive updates")
}

func TestOpportunityStore_OneActivePerListing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOpportunityStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()
	l := seedListing(t, pool, "charizard base set", 1)

	require.NoError(t, store.Insert(ctx, newOpportunity(l, now)))

	err := store.Insert(ctx, newOpportunity(l, now))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOpportunityStore_UpdateMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOpportunityStore(pool)
	l := seedListing(t, pool, "charizard base set", 1)

	o := newOpportunity(l, time.Now().UTC())
	o.ID = 9999
	err := store.Update(context.Background(), o)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpportunityStore_Sweeps(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOpportunityStore(pool)
	listings := NewListingStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	liveListing := seedListing(t, pool, "charizard base set", 1)
	goneListing := seedListing(t, pool, "pikachu jungle", 2)

	fresh := newOpportunity(liveListing, now)
	stale := newOpportunity(goneListing, now.Add(-12*time.Hour))
	require.NoError(t, store.Insert(ctx, fresh))
	require.NoError(t, store.Insert(ctx, stale))

	// Staleness sweep retires only the unverified one.
	changed, err := store.DeactivateUnverifiedBefore(ctx, now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	_, err = store.GetActiveByListing(ctx, goneListing.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Cascade sweep retires opportunities whose listing went inactive.
	changed, err = listings.DeactivateAll(ctx, "cherry")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = store.DeactivateForInactiveListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	_, err = store.GetActiveByListing(ctx, liveListing.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestOpportunityStore_GetActiveOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOpportunityStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	small := newOpportunity(seedListing(t, pool, "card a", 1), now)
	small.DiscountPct = decimal.RequireFromString("10.00")
	big := newOpportunity(seedListing(t, pool, "card b", 2), now)
	big.DiscountPct = decimal.RequireFromString("45.50")

	require.NoError(t, store.Insert(ctx, small))
	require.NoError(t, store.Insert(ctx, big))

	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.True(t, active[0].DiscountPct.Equal(big.DiscountPct))
}
