package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
)

var (
	ebayURL          = regexp.MustCompile(`ebay\.(com|co\.uk|de|fr|it|es|com\.au|ca|at|be|ch|ie|nl|ph|pl|com\.sg)`)
	ebayDetailsAbout = regexp.MustCompile(`(?i)^Details about\s+`)
	ebayImageSize    = regexp.MustCompile(`s-l\d+`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// ebayPriceLabel reads legacy listings that put the price next to a "Price:" label
const ebayPriceLabel = page.XPathPrefix + `//*[normalize-space(text())='Price:']/following-sibling::*[1]`

// ebayConfig returns the eBay strategy configuration
func ebayConfig() SiteConfig {
	return SiteConfig{
		Site:       "ebay",
		Priority:   10,
		URLPattern: ebayURL,
		ProductPage: func(p page.Page) bool {
			return strings.Contains(urlPath(p), "/itm/")
		},
		Handlers: FieldHandlers{
			Title: []FieldHandlerFunc{
				Text(
					"h1.x-item-title__mainTitle span",
					`h1[itemprop="name"]`,
					"#itemTitle",
					".x-item-title__mainTitle",
				).Then(func(title string) string {
					return ebayDetailsAbout.ReplaceAllString(title, "")
				}),
			},
			Description: []FieldHandlerFunc{
				ebayItemSpecifics,
				Text(".x-item-title__subTitle span"),
			},
			Image: []FieldHandlerFunc{
				Image(
					".ux-image-carousel-item.active img",
					".ux-image-carousel-item img",
					"#icImg",
					`img[itemprop="image"]`,
					".img-container img",
					".image-viewer-container img",
				).Then(func(src string) string {
					return ebayImageSize.ReplaceAllString(src, "s-l500")
				}),
			},
			Price: []FieldHandlerFunc{
				Text(
					`.x-price-primary span[itemprop="price"]`,
					".x-price-primary .ux-textspans",
					"#prcIsum",
					"#mm-saleDscPrc",
					".display-price",
					`[itemprop="price"]`,
					ebayPriceLabel,
				).Then(func(price string) string {
					return whitespace.ReplaceAllString(price, " ")
				}),
				Attr(`[itemprop="price"]`, "content"),
			},
		},
		Currency: func(p page.Page, price string) string {
			if code := p.Attr(`[itemprop="priceCurrency"]`, "content"); code != "" {
				return code
			}
			return normalize.DetectCurrency(price, p.Hostname())
		},
	}
}

// ebayItemSpecifics pairs item-specific labels with their values.
func ebayItemSpecifics(p page.Page) string {
	cells := p.Elements(".ux-labels-values__labels-content, .ux-labels-values__values-content")
	var pairs []string
	for i := 0; i+1 < len(cells); i += 2 {
		label, value := cells[i].Text(), cells[i+1].Text()
		if label != "" && value != "" {
			pairs = append(pairs, fmt.Sprintf("%s: %s", label, value))
		}
		if len(pairs) == DefaultListSize {
			break
		}
	}
	return strings.Join(pairs, " | ")
}
