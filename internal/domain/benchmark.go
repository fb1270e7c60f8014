package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Benchmark represents a summary market price for one
// (search identity, grader, grade) tuple at a point in time.
// Corresponds to benchmarks table. Rows are append-only: a new computation
// inserts a new row, "current" is resolved by query as the most recent
// row passing the caller's freshness cutoff.
type Benchmark struct {
	ID         int64
	IdentityID int64

	Price      decimal.Decimal // median of filtered comparables
	SampleSize int
	MinPrice   decimal.Decimal
	MaxPrice   decimal.Decimal

	// DataSource encodes the (grader, grade) the row applies to,
	// e.g. "ebay_sold_PSA_10". Scoring matches on the exact tag.
	DataSource string

	ComputedAt time.Time
}

// BenchmarkDataSource builds the data-source tag for a grader/grade pair.
func BenchmarkDataSource(grader Grader, grade int) string {
	return fmt.Sprintf("ebay_sold_%s_%d", grader, grade)
}

// CompSample is a single comparable price observed while computing a
// benchmark. Samples are an analytics time series (ClickHouse); the
// relational Benchmark row remains the source of truth.
type CompSample struct {
	IdentityID int64
	DataSource string
	Title      string
	Price      decimal.Decimal
	ObservedAt time.Time
}
