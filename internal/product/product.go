package product

import (
	"regexp"
	"strconv"
	"strings"
)

// Draft is an extracted product candidate that has not been persisted yet.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	URL         string `json:"url"`
	Site        string `json:"site"`
	ExtractedBy string `json:"extractedBy,omitempty"`
}

// Valid reports whether the draft can be accepted downstream.
func (d *Draft) Valid() bool {
	return d != nil && strings.TrimSpace(d.Title) != ""
}

// Record is a persisted product.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	URL         string `json:"url"`
	Site        string `json:"site"`
	SavedAt     int64  `json:"savedAt"`
}

// NewRecord builds a record from a draft with the given identity.
func NewRecord(d Draft, id string, savedAt int64) Record {
	return Record{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Image:       d.Image,
		Price:       d.Price,
		Currency:    d.Currency,
		URL:         d.URL,
		Site:        d.Site,
		SavedAt:     savedAt,
	}
}

// Reason explains why a save was refused.
type Reason string

const (
	ReasonTrackingDisabled Reason = "tracking_disabled"
	ReasonSiteDisabled     Reason = "site_disabled"
	ReasonDuplicate        Reason = "duplicate"
)

// SaveResult is the outcome of a save. Rejections are results, not errors.
type SaveResult struct {
	Success bool    `json:"success"`
	Reason  Reason  `json:"reason,omitempty"`
	Product *Record `json:"product,omitempty"`
}

// Accepted returns a successful result carrying the stored record.
func Accepted(r Record) SaveResult {
	return SaveResult{Success: true, Product: &r}
}

// Rejected returns a refused result.
func Rejected(reason Reason) SaveResult {
	return SaveResult{Success: false, Reason: reason}
}

// SortOrder selects the ordering of a filtered query.
type SortOrder string

const (
	SortDateDesc  SortOrder = "date-desc"
	SortDateAsc   SortOrder = "date-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortPriceAsc  SortOrder = "price-asc"
	SortNameAsc   SortOrder = "name-asc"
	SortNameDesc  SortOrder = "name-desc"
)

// Filter narrows and orders a product listing.
type Filter struct {
	Query  string    `json:"query,omitempty"`
	Site   string    `json:"site,omitempty"`
	SortBy SortOrder `json:"sortBy,omitempty"`
}

var priceNumber = regexp.MustCompile(`[\d,.]+`)

// ParsePrice returns the first numeric run of a displayed price, 0 when there is none.
func ParsePrice(price string) float64 {
	m := priceNumber.FindString(price)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
