package extractor

// siteConfigs returns the known-site configurations in registration order
func siteConfigs() []SiteConfig {
	return []SiteConfig{
		amazonConfig(),
		ebayConfig(),
		walmartConfig(),
		targetConfig(),
		bestbuyConfig(),
	}
}

// CreateStrategies creates every known-site strategy plus the generic fallback
func CreateStrategies() []Strategy {
	configs := siteConfigs()
	strategies := make([]Strategy, 0, len(configs)+1)
	for _, cfg := range configs {
		strategies = append(strategies, NewConfigurableStrategy(cfg))
	}
	return append(strategies, NewGenericStrategy())
}

// NewDefaultChain returns a chain over CreateStrategies
func NewDefaultChain() *Chain {
	return NewChain(CreateStrategies()...)
}

// SupportedSites lists the known-site slugs
func SupportedSites() []string {
	configs := siteConfigs()
	sites := make([]string, 0, len(configs))
	for _, cfg := range configs {
		sites = append(sites, cfg.Site)
	}
	return sites
}
