package extractor

import (
	"net/url"

	"sjsage522/producttracker/internal/page"
)

// urlPath returns the path component of the page URL
func urlPath(p page.Page) string {
	u, err := url.Parse(p.URL())
	if err != nil {
		return ""
	}
	return u.Path
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
