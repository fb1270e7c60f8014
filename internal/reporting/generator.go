package reporting

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// Generator produces opportunity reports from stored data.
type Generator struct {
	opportunityStore storage.OpportunityStore
	now              func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(opportunityStore storage.OpportunityStore) *Generator {
	return &Generator{
		opportunityStore: opportunityStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report over all currently active opportunities.
// The store already returns them highest discount first.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	active, err := g.opportunityStore.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: g.now(),
		TotalActive: len(active),
	}

	storefronts := make(map[string]struct{})
	discountSum := decimal.Zero
	for _, o := range active {
		row := toRow(o)
		report.Opportunities = append(report.Opportunities, row)
		if row.Storefront != "" {
			storefronts[row.Storefront] = struct{}{}
		}
		discountSum = discountSum.Add(o.DiscountPct)
	}
	report.Storefronts = len(storefronts)

	report.MeanDiscount = "-"
	if len(active) > 0 {
		mean := discountSum.Div(decimal.NewFromInt(int64(len(active)))).Round(2)
		report.MeanDiscount = mean.StringFixed(2) + "%"
	}

	return report, nil
}

func toRow(o *domain.Opportunity) OpportunityRow {
	return OpportunityRow{
		Label:          o.Label,
		Title:          o.Title,
		Storefront:     storefrontFromURL(o.URL),
		Grader:         string(o.Grader),
		Grade:          o.Grade,
		StorePrice:     o.StorePrice.StringFixed(2),
		MarketPrice:    o.MarketPrice.StringFixed(2),
		DiscountPct:    o.DiscountPct.StringFixed(2),
		Profit:         o.Profit.StringFixed(2),
		URL:            o.URL,
		InStock:        o.InStock,
		DiscoveredAt:   o.DiscoveredAt,
		LastVerifiedAt: o.LastVerifiedAt,
	}
}

func storefrontFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
