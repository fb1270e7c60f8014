package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cardarb/internal/domain"
	"cardarb/internal/fetch"
)

// Shopify public JSON endpoints serve at most 250 products per page.
const shopifyPageLimit = 250

// DefaultTimeout is the per-request timeout for feed page fetches.
const DefaultTimeout = 30 * time.Second

// ShopifyClient fetches products from Shopify stores' public JSON
// endpoints (/collections/<handle>/products.json). One client serves
// every Shopify storefront; the store root comes from the Storefront
// passed to FetchPage.
type ShopifyClient struct {
	client *http.Client
}

// ShopifyOption configures ShopifyClient.
type ShopifyOption func(*ShopifyClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ShopifyOption {
	return func(c *ShopifyClient) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ShopifyOption {
	return func(c *ShopifyClient) {
		c.client.Timeout = d
	}
}

// NewShopifyClient creates a Shopify feed client.
func NewShopifyClient(opts ...ShopifyOption) *ShopifyClient {
	c := &ShopifyClient{
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Source = (*ShopifyClient)(nil)

// shopifyProduct mirrors the products.json payload shape.
type shopifyProduct struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Handle   string           `json:"handle"`
	Tags     tagList          `json:"tags"`
	Images   []shopifyImage   `json:"images"`
	Variants []shopifyVariant `json:"variants"`
}

type shopifyImage struct {
	Src string `json:"src"`
}

type shopifyVariant struct {
	ID        int64       `json:"id"`
	Price     json.Number `json:"price"`
	Available bool        `json:"available"`
}

// tagList accepts both the array form (products.json) and the
// comma-separated string form (product .js endpoints).
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*t = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tags: expected array or string: %w", err)
	}
	var out []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	*t = out
	return nil
}

// FetchPage fetches one page of a collection. One RawProduct is emitted
// per variant; variants with a missing id or unparseable price are
// skipped. An empty result signals the end of pagination.
func (c *ShopifyClient) FetchPage(ctx context.Context, sf Storefront, collection string, page int) ([]domain.RawProduct, error) {
	base := strings.TrimRight(sf.BaseURL, "/")
	endpoint := fmt.Sprintf("%s/collections/%s/products.json", base, url.PathEscape(collection))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(shopifyPageLimit))
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fetch.Transient(fmt.Sprintf("fetch %s page %d", collection, page), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetch %s page %d: %w", collection, page, fetch.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fetch.Transient(fmt.Sprintf("fetch %s page %d", collection, page),
			fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s page %d: unexpected status %d", collection, page, resp.StatusCode)
	}

	var body struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fetch.Parse(fmt.Sprintf("decode %s page %d", collection, page), err)
	}

	var out []domain.RawProduct
	for _, p := range body.Products {
		out = append(out, parseProduct(base, p)...)
	}
	return out, nil
}

// parseProduct expands a product into one RawProduct per valid variant.
func parseProduct(baseURL string, p shopifyProduct) []domain.RawProduct {
	title := strings.TrimSpace(p.Title)
	handle := strings.TrimSpace(p.Handle)
	if p.ID == 0 || title == "" || handle == "" {
		return nil
	}

	productURL := fmt.Sprintf("%s/products/%s", baseURL, handle)
	imageURL := ""
	if len(p.Images) > 0 {
		imageURL = p.Images[0].Src
	}

	var out []domain.RawProduct
	for _, v := range p.Variants {
		if v.ID == 0 || v.Price == "" {
			continue
		}
		price, err := decimal.NewFromString(v.Price.String())
		if err != nil {
			continue
		}
		out = append(out, domain.RawProduct{
			ProductID: p.ID,
			VariantID: v.ID,
			Title:     title,
			Handle:    handle,
			URL:       productURL,
			ImageURL:  imageURL,
			Price:     price,
			InStock:   v.Available,
			Tags:      p.Tags,
		})
	}
	return out
}
