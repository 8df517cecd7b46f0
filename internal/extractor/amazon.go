package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"sjsage522/producttracker/internal/page"
)

var (
	amazonURL         = regexp.MustCompile(`amazon\.(com|co\.uk|ca|de|co\.jp|fr|es|it|com\.au|in|com\.br|com\.mx|nl|sg|ae|sa|pl|se|com\.tr|eg)`)
	amazonProductPath = regexp.MustCompile(`(?i)/(dp|gp/product)/[A-Z0-9]{10}`)
	amazonImageSize   = regexp.MustCompile(`\._[^.]+_\.`)
)

// amazonConfig returns the Amazon strategy configuration
func amazonConfig() SiteConfig {
	return SiteConfig{
		Site:       "amazon",
		Priority:   10,
		URLPattern: amazonURL,
		ProductPage: func(p page.Page) bool {
			return amazonProductPath.MatchString(urlPath(p))
		},
		Handlers: FieldHandlers{
			Title: []FieldHandlerFunc{
				Text("#productTitle", "#title span", "h1.a-size-large", `[data-feature-name="title"] span`),
			},
			Description: []FieldHandlerFunc{
				List("#feature-bullets li span", DefaultListSize),
				Text("#productDescription p, #productDescription"),
			},
			Image: []FieldHandlerFunc{
				Image("#landingImage", "#imgBlkFront", "#main-image", ".a-dynamic-image", "#imageBlock img").
					Then(func(src string) string {
						return amazonImageSize.ReplaceAllString(src, "._SL500_.")
					}),
				amazonDynamicImage,
			},
			Price: []FieldHandlerFunc{
				Text(
					".a-price .a-offscreen",
					"#priceblock_ourprice",
					"#priceblock_dealprice",
					"#priceblock_saleprice",
					".a-price-whole",
					"#corePrice_feature_div .a-offscreen",
					"#corePriceDisplay_desktop_feature_div .a-offscreen",
					`span[data-a-color="price"] .a-offscreen`,
				),
			},
		},
	}
}

// amazonDynamicImage reads the first URL of the data-a-dynamic-image JSON map.
// Key order is the document order of the JSON object.
func amazonDynamicImage(p page.Page) string {
	raw := p.Attr("[data-a-dynamic-image]", "data-a-dynamic-image")
	if raw == "" {
		return ""
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return ""
	}
	key, err := dec.Token()
	if err != nil {
		return ""
	}
	if s, ok := key.(string); ok {
		return s
	}
	return ""
}
