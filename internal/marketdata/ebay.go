package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/domain"
	"cardarb/internal/fetch"
	"cardarb/internal/fx"
)

// DefaultEndpoint is the eBay Finding API service URL.
const DefaultEndpoint = "https://svcs.ebay.com/services/search/FindingService/v1"

// pokemonCategoryID is the eBay category for Pokemon trading cards.
const pokemonCategoryID = "183454"

// rateLimitErrorID is the Finding API error id for exceeded call quota.
const rateLimitErrorID = "10001"

// EbayClient fetches sold/completed item comps from the eBay Finding API
// (findCompletedItems, SoldItemsOnly).
type EbayClient struct {
	endpoint       string
	appID          string
	targetCurrency string
	converter      fx.Converter
	client         *http.Client
	maxRetries     int
	retryDelay     time.Duration
	logger         *log.Logger
}

// EbayOption configures EbayClient.
type EbayOption func(*EbayClient)

// WithEndpoint overrides the service URL, for tests.
func WithEndpoint(endpoint string) EbayOption {
	return func(c *EbayClient) { c.endpoint = endpoint }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) EbayOption {
	return func(c *EbayClient) { c.client = client }
}

// WithConverter sets the currency converter for non-target prices.
func WithConverter(conv fx.Converter) EbayOption {
	return func(c *EbayClient) { c.converter = conv }
}

// WithRetry sets the transient retry budget.
func WithRetry(maxRetries int, delay time.Duration) EbayOption {
	return func(c *EbayClient) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) EbayOption {
	return func(c *EbayClient) { c.logger = logger }
}

// NewEbayClient creates a Finding API client. Prices are reported in
// targetCurrency; comps in other currencies are converted when a
// converter is configured and dropped otherwise.
func NewEbayClient(appID, targetCurrency string, opts ...EbayOption) *EbayClient {
	c := &EbayClient{
		endpoint:       DefaultEndpoint,
		appID:          appID,
		targetCurrency: strings.ToUpper(targetCurrency),
		client:         &http.Client{Timeout: 30 * time.Second},
		maxRetries:     fetch.DefaultMaxRetries,
		retryDelay:     fetch.DefaultRetryDelay,
		logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Source = (*EbayClient)(nil)

// findingResponse mirrors the Finding API's nested array JSON shape.
type findingResponse struct {
	FindCompletedItemsResponse []findingEnvelope `json:"findCompletedItemsResponse"`
}

type findingEnvelope struct {
	Ack          []string              `json:"ack"`
	ErrorMessage []findingErrorMessage `json:"errorMessage"`
	SearchResult []struct {
		Item []findingItem `json:"item"`
	} `json:"searchResult"`
}

type findingErrorMessage struct {
	Error []findingError `json:"error"`
}

type findingError struct {
	ErrorID []string `json:"errorId"`
	Message []string `json:"message"`
}

type findingItem struct {
	Title         []string `json:"title"`
	SellingStatus []struct {
		ConvertedCurrentPrice []findingPrice `json:"convertedCurrentPrice"`
		CurrentPrice          []findingPrice `json:"currentPrice"`
	} `json:"sellingStatus"`
}

type findingPrice struct {
	CurrencyID string `json:"@currencyId"`
	Value      string `json:"__value__"`
}

// FetchComparables queries completed items for the search text. Transient
// failures are retried with backoff; a rate-limit response surfaces as
// fetch.ErrRateLimited without retrying.
func (c *EbayClient) FetchComparables(ctx context.Context, q Query) ([]domain.ComparableItem, error) {
	if c.appID == "" {
		return nil, fmt.Errorf("ebay: app id is required")
	}

	var comps []domain.ComparableItem
	err := fetch.Retry(ctx, c.maxRetries, c.retryDelay, fetch.DefaultMaxDelay, func() error {
		var err error
		comps, err = c.fetchOnce(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comps, nil
}

func (c *EbayClient) fetchOnce(ctx context.Context, q Query) ([]domain.ComparableItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 100
	}

	params := req.URL.Query()
	params.Set("OPERATION-NAME", "findCompletedItems")
	params.Set("SERVICE-VERSION", "1.13.0")
	params.Set("SECURITY-APPNAME", c.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("REST-PAYLOAD", "")
	params.Set("categoryId", pokemonCategoryID)
	params.Set("keywords", c.keywords(q))
	params.Set("paginationInput.entriesPerPage", strconv.Itoa(maxResults))
	params.Set("paginationInput.pageNumber", "1")
	params.Set("itemFilter(0).name", "SoldItemsOnly")
	params.Set("itemFilter(0).value", "true")
	req.URL.RawQuery = params.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fetch.Transient("fetch completed items", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetch completed items: %w", fetch.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fetch.Transient("fetch completed items", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch completed items: unexpected status %d", resp.StatusCode)
	}

	var body findingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fetch.Parse("decode finding response", err)
	}
	if len(body.FindCompletedItemsResponse) == 0 {
		return nil, fetch.Parse("decode finding response", fmt.Errorf("missing response envelope"))
	}

	envelope := body.FindCompletedItemsResponse[0]
	if len(envelope.Ack) > 0 && envelope.Ack[0] == "Failure" {
		return nil, c.classifyFailure(envelope.ErrorMessage)
	}

	var comps []domain.ComparableItem
	for _, sr := range envelope.SearchResult {
		for _, item := range sr.Item {
			comp, ok := c.parseItem(ctx, item)
			if ok {
				comps = append(comps, comp)
			}
		}
	}
	return comps, nil
}

// keywords builds the search keywords: product scope, grading token,
// the identity's search text, plus a language marker for the JP stream.
func (c *EbayClient) keywords(q Query) string {
	kw := fmt.Sprintf("pokemon %s %d %s", strings.ToLower(string(q.Grader)), q.Grade, q.SearchText)
	if q.Language == domain.LanguageJP {
		kw += " japanese"
	}
	return kw
}

// classifyFailure maps a Finding API failure payload onto the fetch
// taxonomy. Quota errors become ErrRateLimited so the whole run stops.
func (c *EbayClient) classifyFailure(errorMessages []findingErrorMessage) error {
	for _, em := range errorMessages {
		for _, e := range em.Error {
			id := ""
			if len(e.ErrorID) > 0 {
				id = e.ErrorID[0]
			}
			msg := ""
			if len(e.Message) > 0 {
				msg = e.Message[0]
			}
			if id == rateLimitErrorID || strings.Contains(strings.ToLower(msg), "exceeded") {
				return fmt.Errorf("finding api: %s: %w", msg, fetch.ErrRateLimited)
			}
			return fmt.Errorf("finding api error %s: %s", id, msg)
		}
	}
	return fetch.Parse("finding response", fmt.Errorf("failure ack without error detail"))
}

// parseItem extracts a comparable from one finding item, converting to
// the target currency when needed. Unusable records are dropped.
func (c *EbayClient) parseItem(ctx context.Context, item findingItem) (domain.ComparableItem, bool) {
	if len(item.Title) == 0 || strings.TrimSpace(item.Title[0]) == "" {
		return domain.ComparableItem{}, false
	}
	title := strings.TrimSpace(item.Title[0])

	if len(item.SellingStatus) == 0 {
		return domain.ComparableItem{}, false
	}
	status := item.SellingStatus[0]

	prices := status.ConvertedCurrentPrice
	if len(prices) == 0 {
		prices = status.CurrentPrice
	}
	if len(prices) == 0 || prices[0].Value == "" {
		return domain.ComparableItem{}, false
	}

	amount, err := decimal.NewFromString(prices[0].Value)
	if err != nil {
		return domain.ComparableItem{}, false
	}

	currency := strings.ToUpper(prices[0].CurrencyID)
	if currency == "" {
		currency = c.targetCurrency
	}
	if currency != c.targetCurrency {
		if c.converter == nil {
			return domain.ComparableItem{}, false
		}
		rate, err := c.converter.Rate(ctx, currency, c.targetCurrency)
		if err != nil {
			c.logger.Printf("[marketdata] fx conversion %s->%s failed, dropping comp: %v",
				currency, c.targetCurrency, err)
			return domain.ComparableItem{}, false
		}
		amount = amount.Mul(rate)
	}

	return domain.ComparableItem{Title: title, Price: amount}, true
}
