package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// IdentityStore implements storage.IdentityStore using PostgreSQL.
type IdentityStore struct {
	pool *Pool
}

// NewIdentityStore creates a new IdentityStore.
func NewIdentityStore(pool *Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IdentityStore = (*IdentityStore)(nil)

// Insert adds a new identity. Returns ErrDuplicateKey if
// (normalized_key, language) exists.
func (s *IdentityStore) Insert(ctx context.Context, id *domain.SearchIdentity) error {
	if id == nil || id.NormalizedKey == "" || id.Language == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO search_identities (
			normalized_key, label, language, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		id.NormalizedKey,
		id.Label,
		string(id.Language),
		id.IsActive,
		id.CreatedAt,
		id.UpdatedAt,
	).Scan(&id.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// GetByKey retrieves an identity by (normalized_key, language).
// Returns ErrNotFound if not exists.
func (s *IdentityStore) GetByKey(ctx context.Context, key string, lang domain.Language) (*domain.SearchIdentity, error) {
	query := `
		SELECT id, normalized_key, label, language, is_active, created_at, updated_at
		FROM search_identities
		WHERE normalized_key = $1 AND language = $2
	`

	id, err := scanIdentity(s.pool.QueryRow(ctx, query, key, string(lang)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get identity by key: %w", err)
	}
	return id, nil
}

// GetByID retrieves an identity by its ID. Returns ErrNotFound if not
// exists.
func (s *IdentityStore) GetByID(ctx context.Context, identityID int64) (*domain.SearchIdentity, error) {
	query := `
		SELECT id, normalized_key, label, language, is_active, created_at, updated_at
		FROM search_identities
		WHERE id = $1
	`

	id, err := scanIdentity(s.pool.QueryRow(ctx, query, identityID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get identity by id: %w", err)
	}
	return id, nil
}

func scanIdentity(row pgx.Row) (*domain.SearchIdentity, error) {
	var id domain.SearchIdentity
	var lang string
	err := row.Scan(&id.ID, &id.NormalizedKey, &id.Label, &lang, &id.IsActive, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		return nil, err
	}
	id.Language = domain.Language(lang)
	return &id, nil
}
