// Package transfer reads and writes the JSON and CSV interchange formats for
// saved products.
package transfer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sjsage522/producttracker/internal/product"
)

// FormatVersion is the JSON envelope version written on export
const FormatVersion = 1

// Columns is the fixed CSV column order
var Columns = []string{"id", "title", "url", "image", "description", "price", "site", "savedAt"}

// isoLayout matches JavaScript's Date.toISOString
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the JSON export document
type Envelope struct {
	Version    int              `json:"version"`
	ExportedAt string           `json:"exportedAt"`
	Count      int              `json:"count"`
	Products   []product.Record `json:"products"`
}

// Result is the valid subset of an import plus per-row warnings
type Result struct {
	Products []product.Record `json:"products"`
	Warnings []string         `json:"warnings"`
}

// FormatTime renders epoch milliseconds as an ISO-8601 UTC timestamp
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoLayout)
}

// parseISO accepts RFC 3339 timestamps with or without fractional seconds, and bare dates
func parseISO(s string) (int64, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// parseSavedAt accepts a millisecond epoch number or an ISO-8601 string
func parseSavedAt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) || n <= 1e12 {
			return 0, false
		}
		return int64(n), true
	}
	return parseISO(s)
}

func missingWarning(row int) string {
	return fmt.Sprintf("Row %d: missing required field (id, title, or savedAt), skipped", row)
}

func invalidSavedAtWarning(row int) string {
	return fmt.Sprintf("Row %d: invalid savedAt, skipped", row)
}

func malformedWarning(row int) string {
	return fmt.Sprintf("Row %d: malformed record, skipped", row)
}
