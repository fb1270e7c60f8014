package postgres

import (
	"context"
	"fmt"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// BenchmarkStore implements storage.BenchmarkStore using PostgreSQL.
// The table is append-only: rows are inserted and superseded by newer
// rows, never updated.
type BenchmarkStore struct {
	pool *Pool
}

// NewBenchmarkStore creates a new BenchmarkStore.
func NewBenchmarkStore(pool *Pool) *BenchmarkStore {
	return &BenchmarkStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// Insert adds a new benchmark row.
func (s *BenchmarkStore) Insert(ctx context.Context, b *domain.Benchmark) error {
	if b == nil || b.IdentityID == 0 || b.DataSource == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO benchmarks (
			identity_id, price, sample_size, min_price, max_price,
			data_source, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		b.IdentityID,
		b.Price,
		b.SampleSize,
		b.MinPrice,
		b.MaxPrice,
		b.DataSource,
		b.ComputedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert benchmark: %w", err)
	}
	return nil
}

// LatestFor retrieves the most recent benchmark for an identity with the
// exact data-source tag. Returns ErrNotFound if none exists.
func (s *BenchmarkStore) LatestFor(ctx context.Context, identityID int64, dataSource string) (*domain.Benchmark, error) {
	query := `
		SELECT id, identity_id, price, sample_size, min_price, max_price,
		       data_source, computed_at
		FROM benchmarks
		WHERE identity_id = $1 AND data_source = $2
		ORDER BY computed_at DESC
		LIMIT 1
	`

	var b domain.Benchmark
	err := s.pool.QueryRow(ctx, query, identityID, dataSource).Scan(
		&b.ID, &b.IdentityID, &b.Price, &b.SampleSize,
		&b.MinPrice, &b.MaxPrice, &b.DataSource, &b.ComputedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest benchmark: %w", err)
	}
	return &b, nil
}
