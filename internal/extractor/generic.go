package extractor

import (
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/logger"
)

// GenericSite is the site tag of the fallback strategy
const GenericSite = "generic"

// Technique is one generic extraction method
type Technique struct {
	Name    string
	Extract func(page.Page) *product.Draft
}

// GenericStrategy reads schema.org and Open Graph metadata from any page
type GenericStrategy struct {
	techniques []Technique
	log        *logger.Logger
}

// NewGenericStrategy creates the fallback strategy with its techniques in fixed order:
// JSON-LD, microdata, then Open Graph
func NewGenericStrategy() *GenericStrategy {
	return &GenericStrategy{
		techniques: []Technique{
			{Name: "json-ld", Extract: extractJSONLD},
			{Name: "microdata", Extract: extractMicrodata},
			{Name: "opengraph", Extract: extractOpenGraph},
		},
		log: logger.ForExtractor(GenericSite),
	}
}

// Site returns the generic site tag
func (g *GenericStrategy) Site() string { return GenericSite }

// Priority returns the lowest priority
func (g *GenericStrategy) Priority() int { return 0 }

// CanHandle always returns true
func (g *GenericStrategy) CanHandle(string) bool { return true }

// Extract returns the first technique result with a title
func (g *GenericStrategy) Extract(p page.Page) *product.Draft {
	for _, t := range g.techniques {
		d := t.Extract(p)
		if d.Valid() {
			g.log.Debug().Str("technique", t.Name).Str("url", p.URL()).Msg("Product found")
			return d
		}
	}
	return nil
}
