package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Opportunity Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Active: %d | Storefronts: %d | Mean discount: %s\n\n",
		r.TotalActive, r.Storefronts, r.MeanDiscount))

	// Opportunities
	sb.WriteString("## Active Opportunities\n\n")
	if len(r.Opportunities) > 0 {
		sb.WriteString("| Card | Storefront | Grade | Store | Market | Discount | Profit | In Stock | Last Verified |\n")
		sb.WriteString("|------|------------|-------|-------|--------|----------|--------|----------|---------------|\n")
		for _, o := range r.Opportunities {
			stock := "no"
			if o.InStock {
				stock = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s %d | $%s | $%s | %s%% | $%s | %s | %s |\n",
				o.Label, o.Storefront, o.Grader, o.Grade,
				o.StorePrice, o.MarketPrice, o.DiscountPct, o.Profit,
				stock, o.LastVerifiedAt.Format(time.RFC3339)))
		}
	} else {
		sb.WriteString("No active opportunities.\n")
	}
	sb.WriteString("\n")

	// Links
	if len(r.Opportunities) > 0 {
		sb.WriteString("## Listing Links\n\n")
		for _, o := range r.Opportunities {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", o.Title, o.URL))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
