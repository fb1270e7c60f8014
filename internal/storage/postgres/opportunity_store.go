package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// Insert adds a new opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, o *domain.Opportunity) error {
	if o == nil || o.ListingID == 0 || o.IdentityID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO opportunities (
			listing_id, identity_id, label, title, grader, grade,
			store_price, market_price, discount_pct, profit,
			url, image_url, in_stock, is_active, discovered_at, last_verified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		o.ListingID,
		o.IdentityID,
		o.Label,
		o.Title,
		string(o.Grader),
		o.Grade,
		o.StorePrice,
		o.MarketPrice,
		o.DiscountPct,
		o.Profit,
		o.URL,
		o.ImageURL,
		o.InStock,
		o.IsActive,
		o.DiscoveredAt,
		o.LastVerifiedAt,
	).Scan(&o.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// Update overwrites an existing opportunity row by ID. Returns
// ErrNotFound if the row does not exist.
func (s *OpportunityStore) Update(ctx context.Context, o *domain.Opportunity) error {
	if o == nil || o.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE opportunities SET
			label = $2, title = $3, store_price = $4, market_price = $5,
			discount_pct = $6, profit = $7, url = $8, image_url = $9,
			in_stock = $10, is_active = $11, last_verified_at = $12
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		o.ID,
		o.Label,
		o.Title,
		o.StorePrice,
		o.MarketPrice,
		o.DiscountPct,
		o.Profit,
		o.URL,
		o.ImageURL,
		o.InStock,
		o.IsActive,
		o.LastVerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetActiveByListing retrieves the active opportunity for a listing.
// Returns ErrNotFound if none exists.
func (s *OpportunityStore) GetActiveByListing(ctx context.Context, listingID int64) (*domain.Opportunity, error) {
	query := opportunityColumns + `
		WHERE listing_id = $1 AND is_active
	`
	o, err := scanOpportunity(s.pool.QueryRow(ctx, query, listingID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity by listing: %w", err)
	}
	return o, nil
}

// GetActive returns all active opportunities, highest discount first.
func (s *OpportunityStore) GetActive(ctx context.Context) ([]*domain.Opportunity, error) {
	query := opportunityColumns + `
		WHERE is_active
		ORDER BY discount_pct DESC, id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []*domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		opportunities = append(opportunities, o)
	}
	return opportunities, rows.Err()
}

// DeactivateUnverifiedBefore deactivates active opportunities whose last
// verification is older than cutoff.
func (s *OpportunityStore) DeactivateUnverifiedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET is_active = FALSE
		 WHERE is_active AND last_verified_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale opportunities: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeactivateForInactiveListings deactivates active opportunities whose
// listing is no longer active.
func (s *OpportunityStore) DeactivateForInactiveListings(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities o SET is_active = FALSE
		WHERE o.is_active AND NOT EXISTS (
			SELECT 1 FROM listings l WHERE l.id = o.listing_id AND l.is_active
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("deactivate orphaned opportunities: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const opportunityColumns = `
	SELECT id, listing_id, identity_id, label, title, grader, grade,
	       store_price, market_price, discount_pct, profit, url, image_url,
	       in_stock, is_active, discovered_at, last_verified_at
	FROM opportunities
`

func scanOpportunity(row pgx.Row) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var grader string
	err := row.Scan(
		&o.ID, &o.ListingID, &o.IdentityID, &o.Label, &o.Title, &grader,
		&o.Grade, &o.StorePrice, &o.MarketPrice, &o.DiscountPct, &o.Profit,
		&o.URL, &o.ImageURL, &o.InStock, &o.IsActive, &o.DiscoveredAt,
		&o.LastVerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Grader = domain.Grader(grader)
	return &o, nil
}
