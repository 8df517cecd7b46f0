package extractor

import (
	"sort"

	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/logger"
)

// Chain runs strategies in descending priority
type Chain struct {
	strategies []Strategy
}

// NewChain sorts strategies by priority, keeping registration order for ties
func NewChain(strategies ...Strategy) *Chain {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Chain{strategies: sorted}
}

// Resolve returns the first titled draft produced by an eligible strategy,
// tagged with that strategy's site, or nil when nothing matches.
func (c *Chain) Resolve(p page.Page) *product.Draft {
	return Resolve(c.strategies, p)
}

// Resolve is the dispatch loop over an already ordered strategy list
func Resolve(strategies []Strategy, p page.Page) *product.Draft {
	rawURL := p.URL()
	for _, s := range strategies {
		if !s.CanHandle(rawURL) {
			continue
		}
		d := s.Extract(p)
		if !d.Valid() {
			continue
		}
		d.ExtractedBy = s.Site()
		logger.ForExtractor(s.Site()).Debug().
			Str("url", rawURL).
			Str("title", d.Title).
			Msg("Extracted product")
		return d
	}
	return nil
}

// SupportedSites returns the site slugs of the known-site strategies
func (c *Chain) SupportedSites() []string {
	var sites []string
	for _, s := range c.strategies {
		if s.Site() != GenericSite {
			sites = append(sites, s.Site())
		}
	}
	return sites
}
