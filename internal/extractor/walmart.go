package extractor

import (
	"regexp"
	"strings"

	"sjsage522/producttracker/internal/page"
)

var walmartURL = regexp.MustCompile(`walmart\.com`)

// walmartConfig returns the Walmart strategy configuration
func walmartConfig() SiteConfig {
	return SiteConfig{
		Site:       "walmart",
		Priority:   10,
		URLPattern: walmartURL,
		ProductPage: func(p page.Page) bool {
			return strings.Contains(urlPath(p), "/ip/")
		},
		Handlers: FieldHandlers{
			Title: []FieldHandlerFunc{
				Text(`h1[itemprop="name"]`, "#main-title", "h1.prod-ProductTitle", `[data-testid="product-title"]`, "h1.lh-copy"),
			},
			Description: []FieldHandlerFunc{
				List(`[data-testid="product-highlights"] li`, DefaultListSize),
				Text(`[itemprop="description"]`, ".about-desc", `[data-testid="product-description"]`),
			},
			Image: []FieldHandlerFunc{
				Image(
					`[data-testid="hero-image-container"] img`,
					".hover-zoom-hero-image img",
					".prod-hero-image img",
					`img[itemprop="image"]`,
					".carousel-container img",
				).Then(stripQuery),
			},
			Price: []FieldHandlerFunc{
				walmartPrice,
				walmartPriceParts,
			},
		},
		Currency: Fixed("USD"),
	}
}

var walmartPriceSelectors = []string{
	`[itemprop="price"]`,
	`[data-testid="price-wrap"] span`,
	".price-characteristic",
	".prod-PriceHero .price-group",
	`span[data-automation="product-price"]`,
}

// walmartPrice prefers a machine-readable content attribute and prefixes bare numbers with $.
func walmartPrice(p page.Page) string {
	for _, selector := range walmartPriceSelectors {
		els := p.Elements(selector)
		if len(els) == 0 {
			continue
		}
		if content := els[0].Attr("content"); content != "" {
			return "$" + content
		}
		price := els[0].Text()
		if price == "" {
			continue
		}
		if startsWithDigit(price) && !strings.Contains(price, "$") {
			return "$" + price
		}
		return price
	}
	return ""
}

func walmartPriceParts(p page.Page) string {
	dollars := p.Text(".price-characteristic")
	if dollars == "" {
		return ""
	}
	cents := p.Text(".price-mantissa")
	if cents == "" {
		cents = "00"
	}
	return "$" + dollars + "." + cents
}

func stripQuery(src string) string {
	if i := strings.Index(src, "?"); i >= 0 {
		return src[:i]
	}
	return src
}
