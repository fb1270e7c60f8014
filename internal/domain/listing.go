package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing represents a priced, storefront-specific offer for a graded card.
// Corresponds to listings table. (Storefront, ProductID, VariantID) is the
// natural key: at most one row per tuple. A listing is deactivated (never
// deleted) when it is not re-observed in the most recent reconciliation
// pass for its storefront, and reactivated in place if it reappears.
type Listing struct {
	ID         int64
	Storefront string // storefront slug, e.g. "cherry"
	IdentityID int64  // references search_identities

	// Natural key within the storefront.
	ProductID int64
	VariantID int64

	Title    string
	URL      string
	ImageURL string

	Price    decimal.Decimal // exact amount in the target currency
	InStock  bool
	Language Language
	Grader   Grader
	Grade    int

	IsActive   bool
	FirstSeen  time.Time
	LastSeenAt time.Time
}

// ListingTuple is a (identity, grader, grade) combination that currently
// has at least one active listing. Benchmark computation is demand-driven
// over these tuples only.
type ListingTuple struct {
	IdentityID int64
	Grader     Grader
	Grade      int
	LastSeenAt time.Time // most recent listing activity for ordering
}

// UpsertOutcome reports what a listing upsert did to the stored row.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota
	UpsertUpdated
	UpsertReactivated // was inactive, updated and set active again
)
