// Package fx provides currency rate lookup for converting market
// comparables into the target currency. The cache is an explicit,
// injectable, time-boundedly-valid service: no module-level state, and
// the clock is injectable for tests.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/fetch"
)

// Converter resolves the exchange rate from base to quote currency.
type Converter interface {
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// DefaultTTL bounds how long a cached rate stays valid.
const DefaultTTL = 12 * time.Hour

// HTTPConverter fetches rates from an exchangerate.host-compatible API.
type HTTPConverter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPConverter creates a converter against the given /latest endpoint.
func NewHTTPConverter(endpoint string, client *http.Client) *HTTPConverter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPConverter{endpoint: endpoint, client: client}
}

// Compile-time interface check.
var _ Converter = (*HTTPConverter)(nil)

// Rate fetches the base→quote rate. Identical currencies cost nothing.
func (c *HTTPConverter) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return decimal.Zero, fmt.Errorf("fx: empty currency code")
	}
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("base", base)
	q.Set("symbols", quote)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fetch.Transient("fetch fx rate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fetch.Transient("fetch fx rate", fmt.Errorf("status %d", resp.StatusCode))
	}

	var body struct {
		Rates map[string]json.Number `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fetch.Parse("decode fx response", err)
	}

	raw, ok := body.Rates[quote]
	if !ok {
		return decimal.Zero, fetch.Parse("decode fx response", fmt.Errorf("no rate for %s", quote))
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fetch.Parse("decode fx response", err)
	}
	return rate, nil
}

type cacheKey struct {
	base  string
	quote string
}

type cacheEntry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// CachedConverter wraps an upstream converter with a TTL-bounded cache.
type CachedConverter struct {
	upstream Converter
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// CacheOption configures CachedConverter.
type CacheOption func(*CachedConverter)

// WithTTL sets the cache validity window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedConverter) { c.ttl = ttl }
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedConverter) { c.now = now }
}

// NewCachedConverter wraps upstream with caching.
func NewCachedConverter(upstream Converter, opts ...CacheOption) *CachedConverter {
	c := &CachedConverter{
		upstream: upstream,
		ttl:      DefaultTTL,
		now:      time.Now,
		entries:  make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Converter = (*CachedConverter)(nil)

// Rate returns a cached rate when it is still within the TTL, otherwise
// asks the upstream and caches the result.
func (c *CachedConverter) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	key := cacheKey{base, quote}

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.rate, nil
	}

	rate, err := c.upstream.Rate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{rate: rate, fetchedAt: c.now()}
	c.mu.Unlock()
	return rate, nil
}
