package domain

import "github.com/shopspring/decimal"

// RawProduct is one product variant as yielded by a storefront feed page,
// before identity resolution or inclusion filtering.
type RawProduct struct {
	ProductID int64
	VariantID int64
	Title     string
	Handle    string
	URL       string
	ImageURL  string
	Price     decimal.Decimal
	InStock   bool
	Tags      []string
}

// ComparableItem is a priced market comparable returned by the market data
// adapter, already converted to the target currency.
type ComparableItem struct {
	Title string
	Price decimal.Decimal
}
