package extractor

import (
	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
)

// extractOpenGraph reads og:/product: meta tags. The page must declare
// og:type=product or carry a price amount.
func extractOpenGraph(p page.Page) *product.Draft {
	priceAmount := firstNonEmpty(p.Meta("product:price:amount"), p.Meta("og:price:amount"))
	if p.Meta("og:type") != "product" && priceAmount == "" {
		return nil
	}

	title := firstNonEmpty(p.Meta("og:title"), p.Title())
	if title == "" {
		return nil
	}

	currency := firstNonEmpty(p.Meta("product:price:currency"), p.Meta("og:price:currency"), "USD")
	return &product.Draft{
		Title:       title,
		Description: normalize.Description(firstNonEmpty(p.Meta("og:description"), p.Meta("description"))),
		Image:       normalize.FixProtocol(firstNonEmpty(p.Meta("og:image:secure_url"), p.Meta("og:image"))),
		Price:       priceAmount,
		Currency:    currency,
		URL:         p.URL(),
		Site:        normalize.SiteSlug(p.Hostname()),
	}
}
