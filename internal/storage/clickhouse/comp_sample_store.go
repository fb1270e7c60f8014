package clickhouse

import (
	"context"
	"fmt"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// CompSampleStore implements storage.CompSampleStore using ClickHouse.
// The comp_samples MergeTree is append-only; occasional duplicate batches
// from a retried benchmark run are acceptable analytics noise.
type CompSampleStore struct {
	conn *Conn
}

// NewCompSampleStore creates a new CompSampleStore.
func NewCompSampleStore(conn *Conn) *CompSampleStore {
	return &CompSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CompSampleStore = (*CompSampleStore)(nil)

// InsertBulk adds a batch of samples.
func (s *CompSampleStore) InsertBulk(ctx context.Context, samples []*domain.CompSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO comp_samples (
			identity_id, data_source, title, price, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		err = batch.Append(
			uint64(sample.IdentityID),
			sample.DataSource,
			sample.Title,
			sample.Price,
			sample.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}
