package transfer

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/pkg/errors"
)

// WriteJSON writes records inside a versioned envelope
func WriteJSON(w io.Writer, records []product.Record, exportedAt time.Time) error {
	if records == nil {
		records = []product.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Envelope{
		Version:    FormatVersion,
		ExportedAt: exportedAt.UTC().Format(isoLayout),
		Count:      len(records),
		Products:   records,
	})
}

// rawRecord keeps price and savedAt untyped so both numbers and strings are accepted
type rawRecord struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Price       interface{} `json:"price"`
	Currency    string      `json:"currency"`
	URL         string      `json:"url"`
	Site        string      `json:"site"`
	SavedAt     interface{} `json:"savedAt"`
}

// ReadJSON accepts an export envelope or a bare array of records.
// Only an unreadable document is an error; bad rows become warnings.
func ReadJSON(r io.Reader) (Result, error) {
	var doc json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Result{}, errors.NewParsing("transfer", "invalid JSON file", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(doc, &rows); err != nil {
		var envelope struct {
			Products []json.RawMessage `json:"products"`
		}
		if err := json.Unmarshal(doc, &envelope); err != nil || envelope.Products == nil {
			return Result{}, errors.NewValidation("transfer", `JSON must contain a "products" array or be an array of products`)
		}
		rows = envelope.Products
	}

	result := Result{Products: []product.Record{}, Warnings: []string{}}
	for i, raw := range rows {
		row := i + 1
		var rec rawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.Warnings = append(result.Warnings, malformedWarning(row))
			continue
		}
		if rec.ID == "" || rec.Title == "" || rec.SavedAt == nil {
			result.Warnings = append(result.Warnings, missingWarning(row))
			continue
		}
		savedAt, ok := jsonSavedAt(rec.SavedAt)
		if !ok {
			result.Warnings = append(result.Warnings, invalidSavedAtWarning(row))
			continue
		}
		result.Products = append(result.Products, product.Record{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: rec.Description,
			Image:       rec.Image,
			Price:       jsonPrice(rec.Price),
			Currency:    rec.Currency,
			URL:         rec.URL,
			Site:        rec.Site,
			SavedAt:     savedAt,
		})
	}
	return result, nil
}

func jsonSavedAt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case string:
		return parseISO(t)
	}
	return 0, false
}

// jsonPrice keeps a string price as written and renders a numeric one without exponent
func jsonPrice(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
