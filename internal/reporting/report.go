// Package reporting renders the current active opportunity set as
// Markdown and CSV for operators.
package reporting

import "time"

// Report holds everything rendered into one opportunity report.
type Report struct {
	GeneratedAt time.Time

	// Rows sorted by discount percentage, highest first.
	Opportunities []OpportunityRow

	TotalActive  int
	Storefronts  int
	MeanDiscount string // formatted percentage, "-" when empty
}

// OpportunityRow is one opportunity in display form. Monetary values are
// pre-formatted strings so rendering stays a pure string operation.
type OpportunityRow struct {
	Label          string
	Title          string
	Storefront     string // derived from the listing URL host
	Grader         string
	Grade          int
	StorePrice     string
	MarketPrice    string
	DiscountPct    string
	Profit         string
	URL            string
	InStock        bool
	DiscoveredAt   time.Time
	LastVerifiedAt time.Time
}
