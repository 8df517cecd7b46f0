package extractor

import (
	"regexp"

	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
)

// Strategy is one extraction technique bound to a site or to the generic fallback.
type Strategy interface {
	// Site returns the site slug the strategy is bound to
	Site() string

	// Priority orders strategies; higher runs first
	Priority() int

	// CanHandle reports whether the strategy is eligible for a page URL
	CanHandle(rawURL string) bool

	// Extract returns a draft, or nil when the page is not one it understands
	Extract(p page.Page) *product.Draft
}

// FieldHandlerFunc reads one product field from a page
type FieldHandlerFunc func(page.Page) string

// FieldHandlers lists the handlers tried per field; the first non-empty value wins
type FieldHandlers struct {
	Title       []FieldHandlerFunc
	Description []FieldHandlerFunc
	Image       []FieldHandlerFunc
	Price       []FieldHandlerFunc
}

// CurrencyFunc resolves the currency for an extracted price
type CurrencyFunc func(p page.Page, price string) string

// SiteConfig contains configuration for a known-site strategy
type SiteConfig struct {
	Site     string
	Priority int

	// URLPattern decides eligibility from the page URL
	URLPattern *regexp.Regexp

	// ProductPage reports whether the loaded page is a product-detail page
	ProductPage func(page.Page) bool

	Handlers FieldHandlers

	// Currency defaults to symbol and hostname detection when nil
	Currency CurrencyFunc
}
