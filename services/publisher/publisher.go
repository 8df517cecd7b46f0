package publisher

import (
	"context"
	"time"

	"sjsage522/producttracker/internal/product"
)

// Event types
const (
	EventProductSaved    = "product_saved"
	EventProductsCleaned = "products_cleaned"
)

// Event is a change notification about the product collection
type Event struct {
	Type    string          `json:"type"`
	Product *product.Record `json:"product,omitempty"`
	Count   int             `json:"count"`
	Removed int             `json:"removed,omitempty"`
	Time    int64           `json:"time"`
}

// ProductSaved builds the event sent after an accepted save
func ProductSaved(r product.Record, count int, now time.Time) Event {
	return Event{Type: EventProductSaved, Product: &r, Count: count, Time: now.UnixMilli()}
}

// ProductsCleaned builds the event sent after a retention sweep removed records
func ProductsCleaned(removed, count int, now time.Time) Event {
	return Event{Type: EventProductsCleaned, Removed: removed, Count: count, Time: now.UnixMilli()}
}

// Publisher represents a service for publishing collection events
type Publisher interface {
	// Publish publishes an event to the stream
	Publish(ctx context.Context, event Event) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
