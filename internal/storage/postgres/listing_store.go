package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// CountActive returns the number of active listings for a storefront.
func (s *ListingStore) CountActive(ctx context.Context, storefront string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE storefront = $1 AND is_active`,
		storefront,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active listings: %w", err)
	}
	return count, nil
}

// DeactivateAll marks every active listing for a storefront inactive.
func (s *ListingStore) DeactivateAll(ctx context.Context, storefront string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET is_active = FALSE WHERE storefront = $1 AND is_active`,
		storefront,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate listings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Upsert inserts or updates a listing keyed by
// (storefront, product_id, variant_id). The reconciler is the only writer
// for a storefront, so read-then-write here is race-free in practice.
func (s *ListingStore) Upsert(ctx context.Context, l *domain.Listing) (domain.UpsertOutcome, error) {
	if l == nil || l.Storefront == "" || l.ProductID == 0 {
		return 0, storage.ErrInvalidInput
	}

	var existingID int64
	var wasActive bool
	err := s.pool.QueryRow(ctx,
		`SELECT id, is_active FROM listings
		 WHERE storefront = $1 AND product_id = $2 AND variant_id = $3`,
		l.Storefront, l.ProductID, l.VariantID,
	).Scan(&existingID, &wasActive)

	if isNotFoundError(err) {
		return s.insert(ctx, l)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup listing: %w", err)
	}

	query := `
		UPDATE listings SET
			identity_id = $2, title = $3, url = $4, image_url = $5,
			price = $6, in_stock = $7, language = $8, grader = $9,
			grade = $10, is_active = TRUE, last_seen_at = $11
		WHERE id = $1
	`
	_, err = s.pool.Exec(ctx, query,
		existingID,
		l.IdentityID,
		l.Title,
		l.URL,
		l.ImageURL,
		l.Price,
		l.InStock,
		string(l.Language),
		string(l.Grader),
		l.Grade,
		l.LastSeenAt,
	)
	if err != nil {
		return 0, fmt.Errorf("update listing: %w", err)
	}

	l.ID = existingID
	l.IsActive = true
	if wasActive {
		return domain.UpsertUpdated, nil
	}
	return domain.UpsertReactivated, nil
}

func (s *ListingStore) insert(ctx context.Context, l *domain.Listing) (domain.UpsertOutcome, error) {
	query := `
		INSERT INTO listings (
			storefront, identity_id, product_id, variant_id, title, url,
			image_url, price, in_stock, language, grader, grade,
			is_active, first_seen, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, $14)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		l.Storefront,
		l.IdentityID,
		l.ProductID,
		l.VariantID,
		l.Title,
		l.URL,
		l.ImageURL,
		l.Price,
		l.InStock,
		string(l.Language),
		string(l.Grader),
		l.Grade,
		l.FirstSeen,
		l.LastSeenAt,
	).Scan(&l.ID)
	if err != nil {
		return 0, fmt.Errorf("insert listing: %w", err)
	}
	l.IsActive = true
	return domain.UpsertCreated, nil
}

// GetByNaturalKey retrieves a listing by its natural key. Returns
// ErrNotFound if not exists.
func (s *ListingStore) GetByNaturalKey(ctx context.Context, storefront string, productID, variantID int64) (*domain.Listing, error) {
	query := listingColumns + `
		WHERE storefront = $1 AND product_id = $2 AND variant_id = $3
	`
	l, err := scanListing(s.pool.QueryRow(ctx, query, storefront, productID, variantID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by natural key: %w", err)
	}
	return l, nil
}

// ActiveTuples returns the distinct (identity, grader, grade) tuples with
// at least one active listing, most recent listing activity first.
func (s *ListingStore) ActiveTuples(ctx context.Context) ([]domain.ListingTuple, error) {
	query := `
		SELECT identity_id, grader, grade, MAX(last_seen_at) AS last_seen_at
		FROM listings
		WHERE is_active
		GROUP BY identity_id, grader, grade
		ORDER BY last_seen_at DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active tuples: %w", err)
	}
	defer rows.Close()

	var tuples []domain.ListingTuple
	for rows.Next() {
		var t domain.ListingTuple
		var grader string
		if err := rows.Scan(&t.IdentityID, &grader, &t.Grade, &t.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan tuple: %w", err)
		}
		t.Grader = domain.Grader(grader)
		tuples = append(tuples, t)
	}
	return tuples, rows.Err()
}

// GetActiveSince returns active listings last seen at or after cutoff.
func (s *ListingStore) GetActiveSince(ctx context.Context, cutoff time.Time) ([]*domain.Listing, error) {
	query := listingColumns + `
		WHERE is_active AND last_seen_at >= $1
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query active listings: %w", err)
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

const listingColumns = `
	SELECT id, storefront, identity_id, product_id, variant_id, title, url,
	       image_url, price, in_stock, language, grader, grade, is_active,
	       first_seen, last_seen_at
	FROM listings
`

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var lang, grader string
	err := row.Scan(
		&l.ID, &l.Storefront, &l.IdentityID, &l.ProductID, &l.VariantID,
		&l.Title, &l.URL, &l.ImageURL, &l.Price, &l.InStock,
		&lang, &grader, &l.Grade, &l.IsActive, &l.FirstSeen, &l.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	l.Language = domain.Language(lang)
	l.Grader = domain.Grader(grader)
	return &l, nil
}
