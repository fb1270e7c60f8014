// Package feeds provides storefront product feed adapters. A storefront
// is described by configuration (capability pattern) rather than by a
// per-store type hierarchy: the same Shopify client serves every Shopify
// storefront, and per-store parsing quirks live in the Storefront config.
package feeds

import (
	"context"

	"cardarb/internal/domain"
)

// Source yields raw product records per storefront page. An empty slice
// signals the end of pagination. Errors follow the fetch taxonomy:
// *fetch.TransientError, fetch.ErrRateLimited, *fetch.ParseError.
type Source interface {
	FetchPage(ctx context.Context, sf Storefront, collection string, page int) ([]domain.RawProduct, error)
}

// Collection is one storefront collection to scan, together with the
// grading authority the collection implies for titles that state a grade
// without naming a grader.
type Collection struct {
	Handle        string
	DefaultGrader domain.Grader
}

// Storefront is the scan configuration for one store.
type Storefront struct {
	// Slug is the storefront discriminator persisted on listings.
	Slug string

	// BaseURL is the store root, e.g. "https://www.cherrycollectables.com.au".
	BaseURL string

	// Collections to scan each cycle.
	Collections []Collection

	// RequireInStock excludes out-of-stock variants from tracking.
	RequireInStock bool

	// TrackedGrade is the only grade this storefront is scanned for.
	TrackedGrade int
}
