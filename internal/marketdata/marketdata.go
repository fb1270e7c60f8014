// Package marketdata provides adapters that yield comparable priced items
// for a search identity, used by the benchmark engine.
package marketdata

import (
	"context"

	"cardarb/internal/domain"
)

// Query scopes one comparables lookup.
type Query struct {
	SearchText string
	Language   domain.Language
	Grader     domain.Grader
	Grade      int
	MaxResults int
}

// Source yields comparable priced items for a query. Errors follow the
// fetch taxonomy; fetch.ErrRateLimited must surface unwrapped through
// errors.Is so callers can abort the remainder of a run.
type Source interface {
	FetchComparables(ctx context.Context, q Query) ([]domain.ComparableItem, error)
}
