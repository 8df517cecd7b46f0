package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		price    string
		expected float64
	}{
		{"$1,299.99", 1299.99},
		{"£49.99", 49.99},
		{"EUR 12", 12},
		{"", 0},
		{"Free", 0},
		{"$10 - $20", 10},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ParsePrice(tt.price), 0.0001)
		})
	}
}

func TestDraftValid(t *testing.T) {
	var nilDraft *Draft
	assert.False(t, nilDraft.Valid())
	assert.False(t, (&Draft{Title: "  "}).Valid())
	assert.True(t, (&Draft{Title: "Widget"}).Valid())
}

func TestNewRecord(t *testing.T) {
	d := Draft{Title: "Widget", Price: "$5", Currency: "USD", URL: "https://shop.example.com/w", Site: "example", ExtractedBy: "generic"}
	r := NewRecord(d, "id-1", 1700000000000)

	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, int64(1700000000000), r.SavedAt)
	assert.Equal(t, "Widget", r.Title)
	assert.Equal(t, "example", r.Site)

	res := Accepted(r)
	assert.True(t, res.Success)
	assert.Equal(t, "id-1", res.Product.ID)
	assert.Equal(t, ReasonDuplicate, Rejected(ReasonDuplicate).Reason)
}
