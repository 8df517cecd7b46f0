package extractor

import (
	"encoding/json"
	"strconv"

	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
)

// extractJSONLD scans every ld+json block for a Product node.
// Blocks that fail to parse are skipped.
func extractJSONLD(p page.Page) *product.Draft {
	for _, script := range p.Elements(`script[type="application/ld+json"]`) {
		var data interface{}
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
			continue
		}
		if node := findProductNode(data); node != nil {
			return draftFromJSONLD(node, p)
		}
	}
	return nil
}

func findProductNode(data interface{}) map[string]interface{} {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			if found := findProductNode(item); found != nil {
				return found
			}
		}
	case map[string]interface{}:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findProductNode(graph)
		}
	}
	return nil
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func draftFromJSONLD(node map[string]interface{}, p page.Page) *product.Draft {
	price, currency := "", "USD"
	if offers, ok := node["offers"]; ok {
		offer := offers
		if list, ok := offers.([]interface{}); ok {
			offer = nil
			if len(list) > 0 {
				offer = list[0]
			}
		}
		if o, ok := offer.(map[string]interface{}); ok {
			price = stringify(o["price"])
			if price == "" {
				price = stringify(o["lowPrice"])
			}
			if c := stringify(o["priceCurrency"]); c != "" {
				currency = c
			}
		}
	}

	return &product.Draft{
		Title:       stringify(node["name"]),
		Description: normalize.Description(stringify(node["description"])),
		Image:       jsonLDImage(node["image"]),
		Price:       price,
		Currency:    currency,
		URL:         p.URL(),
		Site:        normalize.SiteSlug(p.Hostname()),
	}
}

func jsonLDImage(image interface{}) string {
	switch v := image.(type) {
	case string:
		return v
	case []interface{}:
		if len(v) == 0 {
			return ""
		}
		if s, ok := v[0].(string); ok {
			return s
		}
		if obj, ok := v[0].(map[string]interface{}); ok {
			return firstNonEmpty(stringify(obj["url"]), stringify(obj["@id"]), stringify(obj["contentUrl"]))
		}
	case map[string]interface{}:
		return firstNonEmpty(stringify(v["url"]), stringify(v["@id"]), stringify(v["contentUrl"]))
	}
	return ""
}

// stringify renders JSON scalars the way they read on the page; 0 and false read as empty.
func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == 0 {
			return ""
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		if s {
			return "true"
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
