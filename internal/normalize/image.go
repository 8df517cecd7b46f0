package normalize

import (
	"strconv"
	"strings"

	"sjsage522/producttracker/internal/page"
)

// MinImageArea is the pixel area an unlabeled on-page image must exceed to be used.
const MinImageArea = 10000

var productImageSelectors = []string{
	"[data-product-image] img",
	".product-image img",
	".product-photo img",
	".product-gallery img",
	".product__image img",
	".product-single__photo img",
	`[class*="product"] img[src*="product"]`,
	`[class*="gallery"] img`,
	`main img[src*="cdn"]`,
	`main img[src*="product"]`,
}

// IsImageURL reports whether s is an absolute or protocol-relative URL.
func IsImageURL(s string) bool {
	return strings.HasPrefix(s, "http") || strings.HasPrefix(s, "//")
}

// FixProtocol rewrites protocol-relative URLs to https.
func FixProtocol(s string) string {
	if strings.HasPrefix(s, "//") {
		return "https:" + s
	}
	return s
}

// Image keeps raw when it is a usable URL and otherwise falls back to the
// best image the page advertises.
func Image(raw string, p page.Page) string {
	if IsImageURL(raw) {
		return FixProtocol(raw)
	}
	if p == nil {
		return ""
	}
	return PageImage(p)
}

// PageImage walks the page-level image hints in order: og:image tags,
// the secure og:image variant, twitter:image, link rel=image_src, common
// product gallery markup, and finally the largest product-looking image.
func PageImage(p page.Page) string {
	for _, content := range p.MetaAll("og:image") {
		if IsImageURL(content) {
			return FixProtocol(content)
		}
	}

	if secure := p.Attr(`meta[property="og:image:secure_url"]`, "content"); strings.HasPrefix(secure, "http") {
		return secure
	}

	if twitter := p.Attr(`meta[name="twitter:image"]`, "content"); IsImageURL(twitter) {
		return FixProtocol(twitter)
	}

	if link := p.Attr(`link[rel="image_src"]`, "href"); strings.HasPrefix(link, "http") {
		return link
	}

	for _, selector := range productImageSelectors {
		imgs := p.Elements(selector)
		if len(imgs) == 0 {
			continue
		}
		img := imgs[0]
		src := firstNonEmpty(img.URLAttr("src"), img.URLAttr("data-src"), img.URLAttr("data-lazy-src"))
		if IsImageURL(src) {
			return FixProtocol(src)
		}
	}

	best, bestArea := "", 0
	for _, img := range p.Elements(`img[src*="cdn"], img[src*="product"], img[src*="shop"]`) {
		src := firstNonEmpty(img.URLAttr("src"), img.URLAttr("data-src"))
		if !IsImageURL(src) {
			continue
		}
		area := dimension(img, "width") * dimension(img, "height")
		if area > bestArea && area > MinImageArea {
			best, bestArea = src, area
		}
	}
	return FixProtocol(best)
}

func dimension(img page.Element, attr string) int {
	v := img.Attr("data-natural-" + attr)
	if v == "" {
		v = img.Attr(attr)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
