package extractor

import (
	"strings"

	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/logger"
)

// DefaultListSize is how many list items a joined description keeps
const DefaultListSize = 5

// ConfigurableStrategy is a known-site strategy driven by a SiteConfig
type ConfigurableStrategy struct {
	config SiteConfig
	log    *logger.Logger
}

// NewConfigurableStrategy creates a new configurable strategy
func NewConfigurableStrategy(config SiteConfig) *ConfigurableStrategy {
	return &ConfigurableStrategy{
		config: config,
		log:    logger.ForExtractor(config.Site),
	}
}

// Site returns the site slug
func (s *ConfigurableStrategy) Site() string { return s.config.Site }

// Priority returns the strategy priority
func (s *ConfigurableStrategy) Priority() int { return s.config.Priority }

// CanHandle reports whether rawURL belongs to the configured site
func (s *ConfigurableStrategy) CanHandle(rawURL string) bool {
	return s.config.URLPattern != nil && s.config.URLPattern.MatchString(rawURL)
}

// Extract builds a draft from the page, or returns nil when the page is not a
// product-detail page or carries no title
func (s *ConfigurableStrategy) Extract(p page.Page) *product.Draft {
	if s.config.ProductPage != nil && !s.config.ProductPage(p) {
		s.log.Debug().Str("url", p.URL()).Msg("Not a product page")
		return nil
	}

	title := firstValue(p, s.config.Handlers.Title)
	if title == "" {
		s.log.Debug().Str("url", p.URL()).Msg("No title found")
		return nil
	}

	price := firstValue(p, s.config.Handlers.Price)

	currency := ""
	if s.config.Currency != nil {
		currency = s.config.Currency(p, price)
	}
	if currency == "" {
		currency = normalize.DetectCurrency(price, p.Hostname())
	}

	return &product.Draft{
		Title:       title,
		Description: normalize.Description(firstValue(p, s.config.Handlers.Description)),
		Image:       firstValue(p, s.config.Handlers.Image),
		Price:       price,
		Currency:    currency,
		URL:         p.URL(),
		Site:        s.config.Site,
	}
}

func firstValue(p page.Page, handlers []FieldHandlerFunc) string {
	for _, h := range handlers {
		if v := strings.TrimSpace(h(p)); v != "" {
			return v
		}
	}
	return ""
}

// Then applies transform to a non-empty handler result
func (h FieldHandlerFunc) Then(transform func(string) string) FieldHandlerFunc {
	return func(p page.Page) string {
		v := h(p)
		if v == "" {
			return ""
		}
		return transform(v)
	}
}

// Text returns the trimmed text of the first element of the first selector that has any
func Text(selectors ...string) FieldHandlerFunc {
	return TextWhere(nil, selectors...)
}

// TextWhere is like Text but skips values rejected by accept
func TextWhere(accept func(string) bool, selectors ...string) FieldHandlerFunc {
	return func(p page.Page) string {
		for _, selector := range selectors {
			v := p.Text(selector)
			if v == "" {
				continue
			}
			if accept != nil && !accept(v) {
				continue
			}
			return v
		}
		return ""
	}
}

// Attr returns an attribute of the first element matching selector
func Attr(selector, attr string) FieldHandlerFunc {
	return func(p page.Page) string {
		return p.Attr(selector, attr)
	}
}

// List joins the first n non-empty item texts matching selector with " | "
func List(selector string, n int) FieldHandlerFunc {
	return func(p page.Page) string {
		var items []string
		for _, el := range p.Elements(selector) {
			if t := el.Text(); t != "" {
				items = append(items, t)
			}
			if len(items) == n {
				break
			}
		}
		return strings.Join(items, " | ")
	}
}

// Image returns the resolved src of the first element of the first selector
// that has a non-placeholder image
func Image(selectors ...string) FieldHandlerFunc {
	return func(p page.Page) string {
		for _, selector := range selectors {
			els := p.Elements(selector)
			if len(els) == 0 {
				continue
			}
			src := els[0].URLAttr("src")
			if src != "" && !strings.Contains(src, "placeholder") {
				return src
			}
		}
		return ""
	}
}

// HostSuffix returns a CurrencyFunc that maps hostname suffixes to codes, else fallback
func HostSuffix(fallback string, suffixes map[string]string) CurrencyFunc {
	return func(p page.Page, _ string) string {
		host := p.Hostname()
		for suffix, code := range suffixes {
			if strings.HasSuffix(host, suffix) {
				return code
			}
		}
		return fallback
	}
}

// Fixed returns a CurrencyFunc that always reports code
func Fixed(code string) CurrencyFunc {
	return func(page.Page, string) string { return code }
}
