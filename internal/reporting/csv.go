package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders opportunity rows as CSV string.
func RenderCSV(rows []OpportunityRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("label,storefront,grader,grade,store_price,market_price,discount_pct,profit,")
	sb.WriteString("in_stock,url,discovered_at,last_verified_at\n")

	// Rows
	for _, o := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%s,%s,%s,%t,%s,%s,%s\n",
			csvField(o.Label),
			csvField(o.Storefront),
			o.Grader,
			o.Grade,
			o.StorePrice,
			o.MarketPrice,
			o.DiscountPct,
			o.Profit,
			o.InStock,
			csvField(o.URL),
			o.DiscoveredAt.Format(time.RFC3339),
			o.LastVerifiedAt.Format(time.RFC3339),
		))
	}

	return sb.String()
}

// csvField quotes a value when it contains a delimiter or quote.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
