// Package normalize turns raw scraped strings into canonical product fields.
package normalize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDescription is the description length limit in characters.
const MaxDescription = 300

const ellipsis = "..."

var strict = bluemonday.StrictPolicy()

// currencySymbols is ordered so multi-character symbols win over their suffixes.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"R$", "BRL"},
	{"AU $", "AUD"},
	{"A$", "AUD"},
	{"C $", "CAD"},
	{"C$", "CAD"},
	{"£", "GBP"},
	{"€", "EUR"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"$", "USD"},
}

var domainCurrencies = []struct {
	suffixes []string
	code     string
}{
	{[]string{".co.uk"}, "GBP"},
	{[]string{".de", ".fr", ".es", ".it"}, "EUR"},
	{[]string{".co.jp"}, "JPY"},
	{[]string{".ca"}, "CAD"},
	{[]string{".com.au"}, "AUD"},
	{[]string{".in"}, "INR"},
	{[]string{".com.br"}, "BRL"},
}

// DetectCurrency returns the ISO 4217 code for a displayed price.
// An explicit symbol beats the hostname heuristic; USD is the default.
func DetectCurrency(price, hostname string) string {
	for _, s := range currencySymbols {
		if strings.Contains(price, s.symbol) {
			return s.code
		}
	}
	return CurrencyForHost(hostname)
}

// CurrencyForHost guesses a currency from the hostname suffix.
func CurrencyForHost(hostname string) string {
	host := strings.ToLower(hostname)
	for _, d := range domainCurrencies {
		for _, suffix := range d.suffixes {
			if strings.HasSuffix(host, suffix) {
				return d.code
			}
		}
	}
	return "USD"
}

// Truncate shortens text to at most max characters, ending in an ellipsis when cut.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	if max <= len(ellipsis) {
		return string(runes[:max])
	}
	return strings.TrimSpace(string(runes[:max-len(ellipsis)])) + ellipsis
}

// Description cleans and truncates a scraped description.
func Description(text string) string {
	return Truncate(CleanText(text), MaxDescription)
}

// CleanText strips markup and collapses whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	plain := html.UnescapeString(strict.Sanitize(text))
	return strings.Join(strings.Fields(plain), " ")
}

// SiteSlug derives a short site name from a hostname: the label before the last one.
// Multi-part public suffixes such as co.uk are not special-cased.
func SiteSlug(hostname string) string {
	host := strings.TrimPrefix(strings.ToLower(hostname), "www.")
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}
