package extractor

import (
	"regexp"
	"strings"

	"sjsage522/producttracker/internal/page"
)

var (
	bestbuyURL         = regexp.MustCompile(`bestbuy\.(com|ca)`)
	bestbuyProductPath = regexp.MustCompile(`/site/.*/\d+\.p`)
	bestbuyImageSize   = regexp.MustCompile(`;maxHeight=\d+;maxWidth=\d+`)
)

// bestbuyModelLabel finds the value next to a "Model:" label in the specs block
const bestbuyModelLabel = page.XPathPrefix + `//*[normalize-space(text())='Model:']/following-sibling::*[1]`

// bestbuyConfig returns the Best Buy strategy configuration
func bestbuyConfig() SiteConfig {
	return SiteConfig{
		Site:       "bestbuy",
		Priority:   10,
		URLPattern: bestbuyURL,
		ProductPage: func(p page.Page) bool {
			return bestbuyProductPath.MatchString(urlPath(p)) || p.Exists("[data-sku-id]")
		},
		Handlers: FieldHandlers{
			Title: []FieldHandlerFunc{
				Text(".sku-title h1", "h1.heading-5", `[data-track="product-title"]`, ".shop-product-title h1"),
			},
			Description: []FieldHandlerFunc{
				List(`.feature-list li, [data-track="product-features"] li`, DefaultListSize),
				Text(".model-info-value", bestbuyModelLabel).Then(func(model string) string {
					return "Model: " + model
				}),
			},
			Image: []FieldHandlerFunc{
				Image(
					".primary-image img",
					`[data-track="primary-image"] img`,
					".picture-wrapper img",
					".media-gallery-image img",
					".shop-media-gallery img",
				).Then(func(src string) string {
					return bestbuyImageSize.ReplaceAllString(src, ";maxHeight=640;maxWidth=640")
				}),
			},
			Price: []FieldHandlerFunc{
				TextWhere(looksLikePrice,
					`[data-testid="customer-price"] span`,
					".priceView-customer-price span",
					".priceView-hero-price span",
					`[data-track="product-price"]`,
				),
			},
		},
		Currency: HostSuffix("USD", map[string]string{".ca": "CAD"}),
	}
}

func looksLikePrice(price string) bool {
	return strings.Contains(price, "$") || startsWithDigit(price)
}
