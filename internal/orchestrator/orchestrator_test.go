package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/benchmark"
	"cardarb/internal/domain"
	"cardarb/internal/feeds"
	"cardarb/internal/marketdata"
	"cardarb/internal/reconcile"
	"cardarb/internal/scoring"
	"cardarb/internal/storage"
	"cardarb/internal/storage/memory"
)

type stubFeed struct {
	products []domain.RawProduct
}

func (s *stubFeed) FetchPage(_ context.Context, _ feeds.Storefront, _ string, page int) ([]domain.RawProduct, error) {
	if page > 1 {
		return nil, nil
	}
	return s.products, nil
}

type stubMarket struct {
	comps []domain.ComparableItem
	calls int
}

func (s *stubMarket) FetchComparables(_ context.Context, _ marketdata.Query) ([]domain.ComparableItem, error) {
	s.calls++
	return s.comps, nil
}

func TestOrchestrator_FullCycle(t *testing.T) {
	identities := memory.NewIdentityStore()
	listings := memory.NewListingStore()
	benchmarks := memory.NewBenchmarkStore()
	opportunities := memory.NewOpportunityStore(listings)

	feed := &stubFeed{products: []domain.RawProduct{{
		ProductID: 1,
		VariantID: 10,
		Title:     "Charizard Base Set PSA 10",
		URL:       "https://cherry.example/products/charizard",
		Price:     decimal.RequireFromString("100.00"),
		InStock:   true,
	}}}
	market := &stubMarket{comps: []domain.ComparableItem{
		{Title: "Charizard Base Set PSA 10", Price: decimal.RequireFromString("140.00")},
		{Title: "Charizard PSA 10 Gem Mint", Price: decimal.RequireFromString("150.00")},
		{Title: "Charizard Holo PSA 10", Price: decimal.RequireFromString("160.00")},
	}}

	o := New(Options{
		Reconciler: reconcile.New(feed, identities, listings, reconcile.WithRetry(1, time.Millisecond)),
		Engine:     benchmark.New(market, identities, listings, benchmarks),
		Scorer:     scoring.New(identities, listings, benchmarks, opportunities),
		Storefronts: []feeds.Storefront{{
			Slug:           "cherry",
			Collections:    []feeds.Collection{{Handle: "psa-10", DefaultGrader: domain.GraderPSA}},
			RequireInStock: true,
			TrackedGrade:   10,
		}},
		StageDelay: time.Millisecond,
	})

	result, err := o.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if result.RunID == "" {
		t.Error("Empty run ID")
	}
	if len(result.Reconciled) != 1 || result.Reconciled[0].Created != 1 {
		t.Fatalf("Reconcile stage: %+v", result.Reconciled)
	}
	if result.Benchmarks.Stored != 1 {
		t.Fatalf("Benchmark stage: stored=%d, want 1", result.Benchmarks.Stored)
	}
	if result.Scoring.Found != 1 {
		t.Fatalf("Scoring stage: found=%d, want 1", result.Scoring.Found)
	}

	active, err := opportunities.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("Active opportunities: got %d, want 1", len(active))
	}
	// store 100 vs market median 150.
	if !active[0].DiscountPct.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("DiscountPct: got %s, want 33.33", active[0].DiscountPct)
	}
}

func TestOrchestrator_SkipBenchmarks(t *testing.T) {
	identities := memory.NewIdentityStore()
	listings := memory.NewListingStore()
	benchmarks := memory.NewBenchmarkStore()
	opportunities := memory.NewOpportunityStore(listings)
	market := &stubMarket{}

	o := New(Options{
		Reconciler:     reconcile.New(&stubFeed{}, identities, listings),
		Engine:         benchmark.New(market, identities, listings, benchmarks),
		Scorer:         scoring.New(identities, listings, benchmarks, opportunities),
		SkipBenchmarks: true,
		StageDelay:     time.Millisecond,
	})

	result, err := o.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if result.Benchmarks != nil {
		t.Error("Benchmark stage ran despite SkipBenchmarks")
	}
	if market.calls != 0 {
		t.Errorf("Market queried: %d calls", market.calls)
	}
	if result.Scoring == nil {
		t.Error("Scoring stage did not run")
	}
}

// failingListings fails every call, simulating an unreachable database.
type failingListings struct{}

var errDown = errors.New("storage unavailable")

func (failingListings) CountActive(context.Context, string) (int, error)   { return 0, errDown }
func (failingListings) DeactivateAll(context.Context, string) (int, error) { return 0, errDown }
func (failingListings) ActiveTuples(context.Context) ([]domain.ListingTuple, error) {
	return nil, errDown
}
func (failingListings) Upsert(context.Context, *domain.Listing) (domain.UpsertOutcome, error) {
	return 0, errDown
}
func (failingListings) GetByNaturalKey(context.Context, string, int64, int64) (*domain.Listing, error) {
	return nil, errDown
}
func (failingListings) GetActiveSince(context.Context, time.Time) ([]*domain.Listing, error) {
	return nil, errDown
}

var _ storage.ListingStore = failingListings{}

func TestOrchestrator_StorefrontFailureDoesNotAbortCycle(t *testing.T) {
	identities := memory.NewIdentityStore()
	listings := memory.NewListingStore()
	benchmarks := memory.NewBenchmarkStore()
	opportunities := memory.NewOpportunityStore(listings)

	o := New(Options{
		Reconciler:   reconcile.New(&stubFeed{}, identities, failingListings{}),
		Scorer:       scoring.New(identities, listings, benchmarks, opportunities),
		Storefronts:  []feeds.Storefront{{Slug: "cherry"}},
		StageRetries: 2,
		StageDelay:   time.Millisecond,
	})

	result, err := o.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors: got %d, want 1", len(result.Errors))
	}
	if result.Scoring == nil {
		t.Error("Scoring stage did not run after reconcile failure")
	}
}
