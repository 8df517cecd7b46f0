package extractor

import (
	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
)

// extractMicrodata merges itemprop values across every schema.org Product
// scope, keeping the first non-empty value per field.
func extractMicrodata(p page.Page) *product.Draft {
	scopes := p.Elements(`[itemtype*="schema.org/Product"]`)
	if len(scopes) == 0 {
		return nil
	}

	var name, description, image, price string
	currency := "USD"
	for _, scope := range scopes {
		if name == "" {
			name = itemprop(scope, "name")
		}
		if description == "" {
			description = itemprop(scope, "description")
		}
		if image == "" {
			if els := scope.Find(`[itemprop="image"]`); len(els) > 0 {
				image = firstNonEmpty(els[0].URLAttr("src"), els[0].Attr("content"), els[0].Attr("href"))
			}
		}
		if price == "" {
			price = itemprop(scope, "price")
		}
		if currency == "USD" {
			if found := itemprop(scope, "priceCurrency"); found != "" {
				currency = found
			}
		}
	}

	if name == "" {
		return nil
	}
	return &product.Draft{
		Title:       name,
		Description: normalize.Description(description),
		Image:       image,
		Price:       price,
		Currency:    currency,
		URL:         p.URL(),
		Site:        normalize.SiteSlug(p.Hostname()),
	}
}

// itemprop prefers element text over the content attribute
func itemprop(scope page.Element, prop string) string {
	els := scope.Find(`[itemprop="` + prop + `"]`)
	if len(els) == 0 {
		return ""
	}
	return firstNonEmpty(els[0].Text(), els[0].Attr("content"))
}
