package storage

import (
	"context"
	"time"

	"cardarb/internal/domain"
)

// IdentityStore provides access to search_identities storage.
type IdentityStore interface {
	// Insert adds a new identity and fills in its ID.
	// Returns ErrDuplicateKey if (normalized_key, language) exists.
	Insert(ctx context.Context, id *domain.SearchIdentity) error

	// GetByKey retrieves an identity by (normalized_key, language).
	// Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, key string, lang domain.Language) (*domain.SearchIdentity, error)

	// GetByID retrieves an identity by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.SearchIdentity, error)
}

// ListingStore provides access to listings storage.
type ListingStore interface {
	// CountActive returns the number of active listings for a storefront.
	CountActive(ctx context.Context, storefront string) (int, error)

	// DeactivateAll marks every active listing for a storefront inactive
	// and returns how many rows changed.
	DeactivateAll(ctx context.Context, storefront string) (int, error)

	// Upsert inserts or updates a listing keyed by
	// (storefront, product_id, variant_id). On update all mutable fields
	// are overwritten and the row is set active; FirstSeen is preserved.
	// Fills in the listing's ID and reports what happened.
	Upsert(ctx context.Context, l *domain.Listing) (domain.UpsertOutcome, error)

	// GetByNaturalKey retrieves a listing by its natural key.
	// Returns ErrNotFound if not exists.
	GetByNaturalKey(ctx context.Context, storefront string, productID, variantID int64) (*domain.Listing, error)

	// ActiveTuples returns the distinct (identity, grader, grade) tuples
	// that currently have at least one active listing, ordered by most
	// recent listing activity first.
	ActiveTuples(ctx context.Context) ([]domain.ListingTuple, error)

	// GetActiveSince returns active listings last seen at or after cutoff.
	GetActiveSince(ctx context.Context, cutoff time.Time) ([]*domain.Listing, error)
}

// BenchmarkStore provides access to benchmarks storage. Append-only:
// computed benchmarks are inserted, never updated.
type BenchmarkStore interface {
	// Insert adds a new benchmark row and fills in its ID.
	Insert(ctx context.Context, b *domain.Benchmark) error

	// LatestFor retrieves the most recent benchmark for an identity with
	// the exact data-source tag. Returns ErrNotFound if none exists.
	LatestFor(ctx context.Context, identityID int64, dataSource string) (*domain.Benchmark, error)
}

// OpportunityStore provides access to opportunities storage.
type OpportunityStore interface {
	// Insert adds a new opportunity and fills in its ID.
	Insert(ctx context.Context, o *domain.Opportunity) error

	// Update overwrites an existing opportunity row by ID.
	// Returns ErrNotFound if the row does not exist.
	Update(ctx context.Context, o *domain.Opportunity) error

	// GetActiveByListing retrieves the active opportunity for a listing.
	// Returns ErrNotFound if none exists.
	GetActiveByListing(ctx context.Context, listingID int64) (*domain.Opportunity, error)

	// GetActive returns all active opportunities, highest discount first.
	GetActive(ctx context.Context) ([]*domain.Opportunity, error)

	// DeactivateUnverifiedBefore deactivates active opportunities whose
	// last verification is older than cutoff. Returns rows changed.
	DeactivateUnverifiedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// DeactivateForInactiveListings deactivates active opportunities whose
	// listing is no longer active. Returns rows changed.
	DeactivateForInactiveListings(ctx context.Context) (int, error)
}

// CompSampleStore records comparable price observations as an append-only
// analytics time series.
type CompSampleStore interface {
	// InsertBulk adds a batch of samples.
	InsertBulk(ctx context.Context, samples []*domain.CompSample) error
}
