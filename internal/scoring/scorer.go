// Package scoring joins active listings to their freshest benchmark,
// computes discount and profit, and maintains the opportunity set's
// lifecycle. An opportunity is active iff its listing is active, in
// scope, and below the discount threshold as of the most recent pass.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/domain"
	"cardarb/internal/storage"
)

// Default operating parameters.
var (
	DefaultThreshold       = decimal.RequireFromString("0.85")
	DefaultListingMaxAge   = 24 * time.Hour
	DefaultBenchmarkMaxAge = 24 * time.Hour
	DefaultStaleAfter      = 6 * time.Hour
)

// Options scope one scoring pass.
type Options struct {
	// Threshold overrides the discount threshold when positive.
	// threshold < 1.0 expresses "store price must be at least this
	// fraction below market".
	Threshold decimal.Decimal
}

// Result summarizes one scoring pass.
type Result struct {
	Checked            int // active listings considered
	Found              int // opportunities inserted or refreshed
	Created            int
	Refreshed          int
	NoBenchmark        int // skipped: no fresh benchmark for the tuple
	DeactivatedStale   int
	DeactivatedListing int
	Errors             []string
	StartedAt          time.Time
	Duration           time.Duration
}

// Scorer runs opportunity scoring passes.
type Scorer struct {
	identities    storage.IdentityStore
	listings      storage.ListingStore
	benchmarks    storage.BenchmarkStore
	opportunities storage.OpportunityStore

	threshold       decimal.Decimal
	listingMaxAge   time.Duration
	benchmarkMaxAge time.Duration
	staleAfter      time.Duration
	logger          *log.Logger
	now             func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithThreshold sets the default discount threshold.
func WithThreshold(t decimal.Decimal) Option {
	return func(s *Scorer) {
		if t.IsPositive() {
			s.threshold = t
		}
	}
}

// WithListingMaxAge bounds how recently a listing must have been seen.
func WithListingMaxAge(d time.Duration) Option {
	return func(s *Scorer) { s.listingMaxAge = d }
}

// WithBenchmarkMaxAge bounds benchmark freshness; older rows are treated
// as absent.
func WithBenchmarkMaxAge(d time.Duration) Option {
	return func(s *Scorer) { s.benchmarkMaxAge = d }
}

// WithStaleAfter sets the re-verification window for active
// opportunities.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Scorer) { s.staleAfter = d }
}

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a Scorer.
func New(identities storage.IdentityStore, listings storage.ListingStore, benchmarks storage.BenchmarkStore, opportunities storage.OpportunityStore, opts ...Option) *Scorer {
	s := &Scorer{
		identities:      identities,
		listings:        listings,
		benchmarks:      benchmarks,
		opportunities:   opportunities,
		threshold:       DefaultThreshold,
		listingMaxAge:   DefaultListingMaxAge,
		benchmarkMaxAge: DefaultBenchmarkMaxAge,
		staleAfter:      DefaultStaleAfter,
		logger:          log.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score runs one scoring pass plus the staleness sweep. Per-listing
// failures are counted and do not abort the pass.
func (s *Scorer) Score(ctx context.Context, opts Options) (*Result, error) {
	started := s.now()
	result := &Result{StartedAt: started}

	threshold := s.threshold
	if opts.Threshold.IsPositive() {
		threshold = opts.Threshold
	}

	listings, err := s.listings.GetActiveSince(ctx, started.Add(-s.listingMaxAge))
	if err != nil {
		return nil, fmt.Errorf("load active listings: %w", err)
	}

	for _, l := range listings {
		if !l.InStock {
			continue
		}
		result.Checked++
		if err := s.scoreListing(ctx, l, threshold, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("listing %d: %v", l.ID, err))
		}
	}

	// Opportunities not re-verified this pass or orphaned by listing
	// deactivation are retired, never deleted.
	stale, err := s.opportunities.DeactivateUnverifiedBefore(ctx, started.Add(-s.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("stale sweep: %w", err)
	}
	result.DeactivatedStale = stale

	orphaned, err := s.opportunities.DeactivateForInactiveListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing cascade sweep: %w", err)
	}
	result.DeactivatedListing = orphaned

	result.Duration = s.now().Sub(started)
	s.logger.Printf("[score] checked=%d found=%d created=%d refreshed=%d no_benchmark=%d stale=%d cascade=%d errors=%d in %v",
		result.Checked, result.Found, result.Created, result.Refreshed, result.NoBenchmark,
		result.DeactivatedStale, result.DeactivatedListing, len(result.Errors), result.Duration)
	return result, nil
}

func (s *Scorer) scoreListing(ctx context.Context, l *domain.Listing, threshold decimal.Decimal, result *Result) error {
	b, err := s.benchmarks.LatestFor(ctx, l.IdentityID, domain.BenchmarkDataSource(l.Grader, l.Grade))
	if errors.Is(err, storage.ErrNotFound) {
		result.NoBenchmark++
		return nil
	}
	if err != nil {
		return err
	}
	if s.now().Sub(b.ComputedAt) > s.benchmarkMaxAge {
		// Stale benchmarks are treated as absent, not used.
		result.NoBenchmark++
		return nil
	}

	thresholdPrice := b.Price.Mul(threshold)
	if !l.Price.LessThan(thresholdPrice) {
		return nil
	}

	now := s.now()
	existing, err := s.opportunities.GetActiveByListing(ctx, l.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if existing != nil {
		existing.StorePrice = l.Price
		existing.MarketPrice = b.Price
		existing.DiscountPct = domain.DiscountPct(b.Price, l.Price)
		existing.Profit = domain.Profit(b.Price, l.Price)
		existing.InStock = l.InStock
		existing.LastVerifiedAt = now
		if err := s.opportunities.Update(ctx, existing); err != nil {
			return err
		}
		result.Found++
		result.Refreshed++
		return nil
	}

	label := l.Title
	if id, err := s.identities.GetByID(ctx, l.IdentityID); err == nil {
		label = id.Label
	}

	o := &domain.Opportunity{
		ListingID:      l.ID,
		IdentityID:     l.IdentityID,
		Label:          label,
		Title:          l.Title,
		Grader:         l.Grader,
		Grade:          l.Grade,
		StorePrice:     l.Price,
		MarketPrice:    b.Price,
		DiscountPct:    domain.DiscountPct(b.Price, l.Price),
		Profit:         domain.Profit(b.Price, l.Price),
		URL:            l.URL,
		ImageURL:       l.ImageURL,
		InStock:        l.InStock,
		IsActive:       true,
		DiscoveredAt:   now,
		LastVerifiedAt: now,
	}
	if err := s.opportunities.Insert(ctx, o); err != nil {
		return err
	}
	result.Found++
	result.Created++
	return nil
}
