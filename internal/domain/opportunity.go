package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity represents a detected favorable discount tied to exactly one
// listing. Corresponds to opportunities table; at most one active row per
// listing. Display fields are denormalized at detection time so the record
// stays meaningful even after the listing moves.
//
// Invariants:
//
//	DiscountPct = (MarketPrice - StorePrice) / MarketPrice * 100
//	Profit      = MarketPrice - StorePrice
//
// An opportunity is active iff its listing is active, in scope, and below
// the discount threshold as of the most recent scoring pass.
type Opportunity struct {
	ID         int64
	ListingID  int64
	IdentityID int64

	Label  string // identity label
	Title  string // listing title at detection time
	Grader Grader
	Grade  int

	StorePrice  decimal.Decimal
	MarketPrice decimal.Decimal
	DiscountPct decimal.Decimal
	Profit      decimal.Decimal

	URL      string
	ImageURL string
	InStock  bool

	IsActive       bool
	DiscoveredAt   time.Time
	LastVerifiedAt time.Time
}

// DiscountPct computes the discount percentage of store vs market price,
// rounded to 2 decimal places. Pure function of its inputs.
func DiscountPct(marketPrice, storePrice decimal.Decimal) decimal.Decimal {
	if marketPrice.IsZero() {
		return decimal.Zero
	}
	return marketPrice.Sub(storePrice).
		Div(marketPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// Profit computes the potential profit of buying at store price and
// selling at market price, rounded to 2 decimal places.
func Profit(marketPrice, storePrice decimal.Decimal) decimal.Decimal {
	return marketPrice.Sub(storePrice).Round(2)
}
