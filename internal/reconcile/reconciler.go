// Package reconcile merges storefront feed output into the persistent
// listing set, maintaining active/inactive state across scan cycles.
//
// The pass is a three-phase protocol per storefront: snapshot the active
// count, bulk-deactivate, then upsert-and-reactivate every record observed
// in the current feed. Listings not re-observed stay inactive (soft
// delete); nothing is ever hard-deleted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cardarb/internal/domain"
	"cardarb/internal/feeds"
	"cardarb/internal/fetch"
	"cardarb/internal/identity"
	"cardarb/internal/storage"
)

// ErrReconcileInProgress is returned when a pass for the same storefront
// is already running. The deactivate-then-reactivate protocol is not safe
// under concurrent execution for one storefront.
var ErrReconcileInProgress = errors.New("reconciliation already in progress for storefront")

// Default operating parameters.
const (
	DefaultMaxPages   = 30
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
)

// Result summarizes one reconciliation pass.
type Result struct {
	Storefront  string
	Matched     int // records that passed filters and were upserted
	Created     int
	Updated     int // existing rows rewritten, reactivations included
	Reactivated int
	Removed     int // previously active, not re-observed this pass
	Filtered    int // out of scope: stock, grade, unresolved identity
	Identities  int // new search identities created
	PagesFailed int
	Errors      []string
	StartedAt   time.Time
	Duration    time.Duration
}

// Reconciler runs listing reconciliation passes.
type Reconciler struct {
	source     feeds.Source
	identities storage.IdentityStore
	listings   storage.ListingStore

	maxPages   int
	maxRetries int
	retryDelay time.Duration
	logger     *log.Logger
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMaxPages bounds pagination per collection.
func WithMaxPages(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxPages = n
		}
	}
}

// WithRetry sets the page fetch retry budget.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(r *Reconciler) {
		r.maxRetries = maxRetries
		r.retryDelay = delay
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler.
func New(source feeds.Source, identities storage.IdentityStore, listings storage.ListingStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:     source,
		identities: identities,
		listings:   listings,
		maxPages:   DefaultMaxPages,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     log.Default(),
		now:        time.Now,
		inFlight:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs one full pass for a storefront. Returns
// ErrReconcileInProgress if a pass for the same storefront is running.
// Per-page failures are counted, not raised; only infrastructure failures
// (storage errors) abort the pass.
func (r *Reconciler) Reconcile(ctx context.Context, sf feeds.Storefront) (*Result, error) {
	if !r.acquire(sf.Slug) {
		return nil, ErrReconcileInProgress
	}
	defer r.release(sf.Slug)

	started := r.now()
	result := &Result{Storefront: sf.Slug, StartedAt: started}

	prevActive, err := r.listings.CountActive(ctx, sf.Slug)
	if err != nil {
		return nil, fmt.Errorf("count active listings: %w", err)
	}

	if _, err := r.listings.DeactivateAll(ctx, sf.Slug); err != nil {
		return nil, fmt.Errorf("deactivate listings: %w", err)
	}

	for _, coll := range sf.Collections {
		if err := r.scanCollection(ctx, sf, coll, result); err != nil {
			if errors.Is(err, fetch.ErrRateLimited) {
				// Continuing would compound the block; leave the
				// remaining collections to the next cycle.
				result.Errors = append(result.Errors, fmt.Sprintf("collection %s: rate limited", coll.Handle))
				r.logger.Printf("[reconcile] %s: rate limited on collection %s, aborting pass", sf.Slug, coll.Handle)
				break
			}
			return nil, err
		}
	}

	result.Removed = prevActive - result.Reactivated
	if result.Removed < 0 {
		result.Removed = 0
	}
	result.Duration = r.now().Sub(started)

	r.logger.Printf("[reconcile] %s: matched=%d created=%d updated=%d reactivated=%d removed=%d filtered=%d identities=%d pages_failed=%d in %v",
		sf.Slug, result.Matched, result.Created, result.Updated, result.Reactivated,
		result.Removed, result.Filtered, result.Identities, result.PagesFailed, result.Duration)
	return result, nil
}

func (r *Reconciler) scanCollection(ctx context.Context, sf feeds.Storefront, coll feeds.Collection, result *Result) error {
	for page := 1; page <= r.maxPages; page++ {
		var products []domain.RawProduct
		err := fetch.Retry(ctx, r.maxRetries, r.retryDelay, fetch.DefaultMaxDelay, func() error {
			var fetchErr error
			products, fetchErr = r.source.FetchPage(ctx, sf, coll.Handle, page)
			return fetchErr
		})
		if err != nil {
			if errors.Is(err, fetch.ErrRateLimited) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Progress committed for prior pages is durable; skip this
			// page and keep going.
			result.PagesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("collection %s page %d: %v", coll.Handle, page, err))
			r.logger.Printf("[reconcile] %s: page %d of %s failed after retries: %v", sf.Slug, page, coll.Handle, err)
			continue
		}
		if len(products) == 0 {
			return nil
		}

		for _, p := range products {
			if err := r.processRecord(ctx, sf, coll, p, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// processRecord applies inclusion filters, resolves the identity and
// upserts the listing. Scope rejections are counted as filtered, never as
// errors. Storage failures abort the pass.
func (r *Reconciler) processRecord(ctx context.Context, sf feeds.Storefront, coll feeds.Collection, p domain.RawProduct, result *Result) error {
	if sf.RequireInStock && !p.InStock {
		result.Filtered++
		return nil
	}

	res, ok := identity.Resolve(p.Title, coll.DefaultGrader)
	if !ok {
		result.Filtered++
		return nil
	}
	if sf.TrackedGrade != 0 && res.Grade != sf.TrackedGrade {
		result.Filtered++
		return nil
	}

	id, err := r.resolveIdentity(ctx, res, result)
	if err != nil {
		return fmt.Errorf("resolve identity %q: %w", res.NormalizedKey, err)
	}

	now := r.now()
	listing := &domain.Listing{
		Storefront: sf.Slug,
		IdentityID: id.ID,
		ProductID:  p.ProductID,
		VariantID:  p.VariantID,
		Title:      p.Title,
		URL:        p.URL,
		ImageURL:   p.ImageURL,
		Price:      p.Price,
		InStock:    p.InStock,
		Language:   res.Language,
		Grader:     res.Grader,
		Grade:      res.Grade,
		FirstSeen:  now,
		LastSeenAt: now,
	}

	outcome, err := r.listings.Upsert(ctx, listing)
	if err != nil {
		return fmt.Errorf("upsert listing %d/%d: %w", p.ProductID, p.VariantID, err)
	}

	result.Matched++
	switch outcome {
	case domain.UpsertCreated:
		result.Created++
	case domain.UpsertUpdated:
		result.Updated++
	case domain.UpsertReactivated:
		result.Updated++
		result.Reactivated++
	}
	return nil
}

// resolveIdentity looks up or creates the search identity for a
// resolution. Creation races with concurrent passes are absorbed by
// retrying the lookup on a duplicate key.
func (r *Reconciler) resolveIdentity(ctx context.Context, res identity.Resolution, result *Result) (*domain.SearchIdentity, error) {
	id, err := r.identities.GetByKey(ctx, res.NormalizedKey, res.Language)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := r.now()
	created := &domain.SearchIdentity{
		NormalizedKey: res.NormalizedKey,
		Label:         res.Label,
		Language:      res.Language,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = r.identities.Insert(ctx, created)
	if err == nil {
		result.Identities++
		return created, nil
	}
	if errors.Is(err, storage.ErrDuplicateKey) {
		return r.identities.GetByKey(ctx, res.NormalizedKey, res.Language)
	}
	return nil, err
}

func (r *Reconciler) acquire(storefront string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[storefront] {
		return false
	}
	r.inFlight[storefront] = true
	return true
}

func (r *Reconciler) release(storefront string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, storefront)
}
