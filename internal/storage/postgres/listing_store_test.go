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

// seedIdentity inserts an identity and returns its ID.
func seedIdentity(t *testing.T, pool *Pool, key string, lang domain.Language) int64 {
	t.Helper()
	store := NewIdentityStore(pool)
	now := time.Now().UTC()
	id := &domain.SearchIdentity{
		NormalizedKey: key,
		Label:         key,
		Language:      lang,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Insert(context.Background(), id))
	return id.ID
}

func newListing(identityID, productID int64, price string) *domain.Listing {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Listing{
		Storefront: "cherry",
		IdentityID: identityID,
		ProductID:  productID,
		VariantID:  1,
		Title:      "Charizard Base Set PSA 10",
		URL:        "https://cherry.example/products/charizard",
		Price:      decimal.RequireFromString(price),
		InStock:    true,
		Language:   domain.LanguageEN,
		Grader:     domain.GraderPSA,
		Grade:      10,
		FirstSeen:  now,
		LastSeenAt: now,
	}
}

func TestListingStore_UpsertLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingStore(pool)
	ctx := context.Background()
	identityID := seedIdentity(t, pool, "charizard base set", domain.LanguageEN)

	l := newListing(identityID, 100, "250.00")
	outcome, err := store.Upsert(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertCreated, outcome)
	assert.NotZero(t, l.ID)

	// Same natural key: update in place.
	update := newListing(identityID, 100, "275.00")
	outcome, err = store.Upsert(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertUpdated, outcome)
	assert.Equal(t, l.ID, update.ID)

	got, err := store.GetByNaturalKey(ctx, "cherry", 100, 1)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("275.00")))
	assert.True(t, got.FirstSeen.Equal(l.FirstSeen), "FirstSeen must be preserved on update")

	// Deactivate then upsert again: reactivation, same row.
	changed, err := store.DeactivateAll(ctx, "cherry")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	back := newListing(identityID, 100, "260.00")
	outcome, err = store.Upsert(ctx, back)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertReactivated, outcome)
	assert.Equal(t, l.ID, back.ID)

	count, err := store.CountActive(ctx, "cherry")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListingStore_ActiveTuples(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingStore(pool)
	ctx := context.Background()
	idA := seedIdentity(t, pool, "charizard base set", domain.LanguageEN)
	idB := seedIdentity(t, pool, "pikachu jungle", domain.LanguageEN)

	now := time.Now().UTC().Truncate(time.Microsecond)

	older := newListing(idA, 1, "100.00")
	older.LastSeenAt = now.Add(-time.Hour)
	newer := newListing(idB, 2, "200.00")
	newer.LastSeenAt = now
	// Second listing of the same tuple as older, more recent.
	sameTuple := newListing(idA, 3, "110.00")
	sameTuple.LastSeenAt = now.Add(-time.Minute)

	for _, l := range []*domain.Listing{older, newer, sameTuple} {
		_, err := store.Upsert(ctx, l)
		require.NoError(t, err)
	}

	tuples, err := store.ActiveTuples(ctx)
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, idB, tuples[0].IdentityID)
	assert.Equal(t, idA, tuples[1].IdentityID)
	assert.True(t, tuples[1].LastSeenAt.Equal(now.Add(-time.Minute)))
}

func TestListingStore_GetActiveSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingStore(pool)
	ctx := context.Background()
	identityID := seedIdentity(t, pool, "charizard base set", domain.LanguageEN)
	now := time.Now().UTC()

	fresh := newListing(identityID, 1, "100.00")
	fresh.LastSeenAt = now
	stale := newListing(identityID, 2, "100.00")
	stale.LastSeenAt = now.Add(-48 * time.Hour)

	for _, l := range []*domain.Listing{fresh, stale} {
		_, err := store.Upsert(ctx, l)
		require.NoError(t, err)
	}

	got, err := store.GetActiveSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ProductID)
}

func TestListingStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingStore(pool)
	_, err := store.GetByNaturalKey(context.Background(), "cherry", 999, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
