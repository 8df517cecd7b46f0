package transfer

import (
	"encoding/csv"
	"io"
	"net/url"
	"strings"

	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/pkg/errors"
)

// WriteCSV writes records with the fixed column order and ISO savedAt values
func WriteCSV(w io.Writer, records []product.Record) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.ID, r.Title, r.URL, r.Image, r.Description, r.Price, r.Site, FormatTime(r.SavedAt)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads rows by header name. Currency is not part of the format and
// is re-detected from the price and URL.
func ReadCSV(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return Result{}, errors.NewParsing("transfer", "invalid CSV file", err)
	}
	if len(rows) < 2 {
		return Result{}, errors.NewValidation("transfer", "CSV file is empty or has no data rows")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	result := Result{Products: []product.Record{}, Warnings: []string{}}
	row := 0
	for _, fields := range rows[1:] {
		if len(fields) == 0 || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "") {
			continue
		}
		row++

		values := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(fields) {
				values[col] = strings.TrimSpace(fields[j])
			}
		}

		if values["id"] == "" || values["title"] == "" || values["savedat"] == "" {
			result.Warnings = append(result.Warnings, missingWarning(row))
			continue
		}
		savedAt, ok := parseSavedAt(values["savedat"])
		if !ok {
			result.Warnings = append(result.Warnings, invalidSavedAtWarning(row))
			continue
		}

		rec := product.Record{
			ID:          values["id"],
			Title:       values["title"],
			Description: values["description"],
			Image:       values["image"],
			Price:       values["price"],
			Currency:    values["currency"],
			URL:         values["url"],
			Site:        values["site"],
			SavedAt:     savedAt,
		}
		if rec.Currency == "" {
			rec.Currency = normalize.DetectCurrency(rec.Price, hostname(rec.URL))
		}
		result.Products = append(result.Products, rec)
	}
	return result, nil
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
