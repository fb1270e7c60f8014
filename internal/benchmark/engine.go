// Package benchmark computes summary market prices for the (identity,
// grader, grade) tuples that currently have active listings. Benchmarks
// are demand-driven and append-only: each computation inserts a new row,
// "current" is resolved by query as the most recent row.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/domain"
	"cardarb/internal/fetch"
	"cardarb/internal/identity"
	"cardarb/internal/marketdata"
	"cardarb/internal/storage"
)

// Default operating parameters. MinAge and MaxPerRun are operational
// tuning values, exposed through config rather than hard-coded call sites.
const (
	DefaultMinAge     = 24 * time.Hour
	DefaultMaxPerRun  = 8
	DefaultMaxResults = 50
)

// Default price band bounds. A median outside [floor, ceiling) is
// discarded: low-value noise and outlier luxury items both generate
// spurious benchmarks.
var (
	DefaultPriceFloor   = decimal.NewFromInt(30)
	DefaultPriceCeiling = decimal.NewFromInt(3000)
)

// Options scope one engine run.
type Options struct {
	// Force bypasses the MinAge freshness skip.
	Force bool

	// MaxPerRun overrides the per-run computation cap when > 0.
	MaxPerRun int
}

// Result summarizes one engine run.
type Result struct {
	Candidates  int
	Stored      int
	Filtered    int // out of price band, or no usable comparables
	Skipped     int // fresh benchmark already exists
	Errors      []string
	RateLimited bool // run aborted early by the market data source
	StartedAt   time.Time
	Duration    time.Duration
}

// Engine computes and persists benchmarks.
type Engine struct {
	source     marketdata.Source
	identities storage.IdentityStore
	listings   storage.ListingStore
	benchmarks storage.BenchmarkStore
	samples    storage.CompSampleStore // optional
	minAge     time.Duration
	maxPerRun  int
	maxResults int
	priceFloor decimal.Decimal
	priceCeil  decimal.Decimal
	logger     *log.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinAge sets the freshness window under which a tuple is skipped.
func WithMinAge(d time.Duration) Option {
	return func(e *Engine) { e.minAge = d }
}

// WithMaxPerRun caps new computations per run.
func WithMaxPerRun(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPerRun = n
		}
	}
}

// WithPriceBand sets the [floor, ceiling) scope filter.
func WithPriceBand(floor, ceiling decimal.Decimal) Option {
	return func(e *Engine) {
		e.priceFloor = floor
		e.priceCeil = ceiling
	}
}

// WithSampleSink records the comparables behind each stored benchmark.
// Writes are best-effort; sink failures never fail a run.
func WithSampleSink(sink storage.CompSampleStore) Option {
	return func(e *Engine) { e.samples = sink }
}

// WithMaxResults caps comparables requested per query.
func WithMaxResults(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(source marketdata.Source, identities storage.IdentityStore, listings storage.ListingStore, benchmarks storage.BenchmarkStore, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		identities: identities,
		listings:   listings,
		benchmarks: benchmarks,
		minAge:     DefaultMinAge,
		maxPerRun:  DefaultMaxPerRun,
		maxResults: DefaultMaxResults,
		priceFloor: DefaultPriceFloor,
		priceCeil:  DefaultPriceCeiling,
		logger:     log.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute runs the engine over all current candidates. Per-candidate
// failures are counted and do not abort the run; a rate-limit response
// stops the run early with RateLimited set. Only storage failures on the
// candidate query itself are returned as errors.
func (e *Engine) Compute(ctx context.Context, opts Options) (*Result, error) {
	started := e.now()
	result := &Result{StartedAt: started}

	maxPerRun := e.maxPerRun
	if opts.MaxPerRun > 0 {
		maxPerRun = opts.MaxPerRun
	}

	tuples, err := e.listings.ActiveTuples(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidate tuples: %w", err)
	}
	result.Candidates = len(tuples)

	computed := 0
	for _, tuple := range tuples {
		if computed >= maxPerRun {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		fresh, err := e.hasFreshBenchmark(ctx, tuple)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("tuple %d/%s/%d: %v", tuple.IdentityID, tuple.Grader, tuple.Grade, err))
			continue
		}
		if fresh && !opts.Force {
			result.Skipped++
			continue
		}

		computed++
		stored, err := e.computeOne(ctx, tuple)
		if err != nil {
			if errors.Is(err, fetch.ErrRateLimited) {
				result.RateLimited = true
				e.logger.Printf("[benchmark] rate limited after %d computations, aborting run", computed)
				break
			}
			result.Errors = append(result.Errors, fmt.Sprintf("tuple %d/%s/%d: %v", tuple.IdentityID, tuple.Grader, tuple.Grade, err))
			continue
		}
		if stored {
			result.Stored++
		} else {
			result.Filtered++
		}
	}

	result.Duration = e.now().Sub(started)
	e.logger.Printf("[benchmark] candidates=%d stored=%d filtered=%d skipped=%d errors=%d rate_limited=%v in %v",
		result.Candidates, result.Stored, result.Filtered, result.Skipped, len(result.Errors), result.RateLimited, result.Duration)
	return result, nil
}

func (e *Engine) hasFreshBenchmark(ctx context.Context, tuple domain.ListingTuple) (bool, error) {
	latest, err := e.benchmarks.LatestFor(ctx, tuple.IdentityID, domain.BenchmarkDataSource(tuple.Grader, tuple.Grade))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.now().Sub(latest.ComputedAt) < e.minAge, nil
}

// computeOne queries comparables for one tuple and stores the median if it
// passes the scope filter. Reports whether a row was stored.
func (e *Engine) computeOne(ctx context.Context, tuple domain.ListingTuple) (bool, error) {
	id, err := e.identities.GetByID(ctx, tuple.IdentityID)
	if err != nil {
		return false, fmt.Errorf("load identity: %w", err)
	}

	comps, err := e.source.FetchComparables(ctx, marketdata.Query{
		SearchText: id.Label,
		Language:   id.Language,
		Grader:     tuple.Grader,
		Grade:      tuple.Grade,
		MaxResults: e.maxResults,
	})
	if err != nil {
		return false, err
	}

	kept := filterComparables(comps, id.Language, tuple.Grader, tuple.Grade)
	if len(kept) == 0 {
		return false, nil
	}

	prices := make([]decimal.Decimal, len(kept))
	for i, c := range kept {
		prices[i] = c.Price
	}
	med := Median(prices)

	if med.LessThan(e.priceFloor) || med.GreaterThanOrEqual(e.priceCeil) {
		e.logger.Printf("[benchmark] %s %s %d: median %s out of band, discarded",
			id.Label, tuple.Grader, tuple.Grade, med)
		return false, nil
	}

	minP, maxP := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(minP) {
			minP = p
		}
		if p.GreaterThan(maxP) {
			maxP = p
		}
	}

	now := e.now()
	b := &domain.Benchmark{
		IdentityID: tuple.IdentityID,
		Price:      med,
		SampleSize: len(kept),
		MinPrice:   minP,
		MaxPrice:   maxP,
		DataSource: domain.BenchmarkDataSource(tuple.Grader, tuple.Grade),
		ComputedAt: now,
	}
	if err := e.benchmarks.Insert(ctx, b); err != nil {
		return false, fmt.Errorf("insert benchmark: %w", err)
	}

	e.recordSamples(ctx, b, kept)
	return true, nil
}

// recordSamples writes the comparables behind a stored benchmark to the
// analytics sink. Best-effort: failures are logged, never propagated.
func (e *Engine) recordSamples(ctx context.Context, b *domain.Benchmark, comps []domain.ComparableItem) {
	if e.samples == nil {
		return
	}
	samples := make([]*domain.CompSample, len(comps))
	for i, c := range comps {
		samples[i] = &domain.CompSample{
			IdentityID: b.IdentityID,
			DataSource: b.DataSource,
			Title:      c.Title,
			Price:      c.Price,
			ObservedAt: b.ComputedAt,
		}
	}
	if err := e.samples.InsertBulk(ctx, samples); err != nil {
		e.logger.Printf("[benchmark] sample sink write failed: %v", err)
	}
}

// filterComparables keeps items whose title names the target grader+grade
// and whose language stream matches. Language-tagged items count only
// toward their own stream; untagged items count only toward the default.
func filterComparables(comps []domain.ComparableItem, lang domain.Language, grader domain.Grader, grade int) []domain.ComparableItem {
	var kept []domain.ComparableItem
	for _, c := range comps {
		if !titleMatchesGrade(c.Title, grader, grade) {
			continue
		}
		if identity.DetectLanguage(c.Title) != lang {
			continue
		}
		if !c.Price.IsPositive() {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func titleMatchesGrade(title string, grader domain.Grader, grade int) bool {
	upper := strings.ToUpper(title)
	spaced := fmt.Sprintf("%s %d", grader, grade)
	compact := fmt.Sprintf("%s%d", grader, grade)
	return containsToken(upper, spaced) || containsToken(upper, compact)
}

// containsToken reports whether needle appears in haystack without a
// trailing digit, so "PSA 1" does not match inside "PSA 10".
func containsToken(haystack, needle string) bool {
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		end := from + i + len(needle)
		if end >= len(haystack) || haystack[end] < '0' || haystack[end] > '9' {
			return true
		}
		from = end
	}
}

// Median returns the standard median of prices: the middle value for odd
// counts, the average of the two middle values for even counts. Panics on
// an empty slice; callers filter first.
func Median(prices []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
