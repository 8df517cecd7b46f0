package extractor

import (
	"regexp"
	"strings"

	"sjsage522/producttracker/helpers"
	"sjsage522/producttracker/internal/page"
)

var (
	targetURL       = regexp.MustCompile(`target\.com`)
	targetAisleItem = regexp.MustCompile(`/A-\d+`)
)

// targetConfig returns the Target strategy configuration
func targetConfig() SiteConfig {
	return SiteConfig{
		Site:       "target",
		Priority:   10,
		URLPattern: targetURL,
		ProductPage: func(p page.Page) bool {
			path := urlPath(p)
			return strings.Contains(path, "/p/") || targetAisleItem.MatchString(path)
		},
		Handlers: FieldHandlers{
			Title: []FieldHandlerFunc{
				Text(`h1[data-test="product-title"]`, `[data-test="product-title"]`, "h1.Heading", "#pdp-product-title-id"),
			},
			Description: []FieldHandlerFunc{
				List(`[data-test="product-highlights"] li, [data-test="item-details-highlights"] li`, DefaultListSize),
				Text(`[data-test="item-details-description"]`, `[data-test="product-description"]`),
			},
			Image: []FieldHandlerFunc{
				Image(
					`[data-test="product-image"] img`,
					".slideDeckPicture img",
					`picture img[src*="target.scene7"]`,
					`[data-test="image-gallery-item-0"] img`,
				),
				targetSrcset,
			},
			Price: []FieldHandlerFunc{
				Text(
					`[data-test="product-price"]`,
					`[data-test="current-price"]`,
					".h-text-lg span",
					".styles__CurrentPriceFontSize",
				).Then(firstOfRange),
			},
		},
		Currency: Fixed("USD"),
	}
}

// targetSrcset returns the last, largest candidate of the product picture srcset.
func targetSrcset(p page.Page) string {
	srcset := p.Attr(`[data-test="product-image"] picture source`, "srcset")
	if srcset == "" {
		return ""
	}
	candidates := strings.Split(srcset, ",")
	fields := strings.Fields(candidates[len(candidates)-1])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// firstOfRange keeps the low end of a "$10 - $20" style range.
func firstOfRange(price string) string {
	for _, sep := range []string{"-", "–"} {
		low, err := helpers.GetSplitPart(price, sep, 0)
		if err != nil {
			return price
		}
		price = strings.TrimSpace(low)
	}
	return price
}
