// Package gateway routes tracker messages to the stores and applies the save
// policy before anything reaches the duplicate check.
package gateway

import (
	"context"
	"strings"
	"time"

	"sjsage522/producttracker/internal/extractor"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/internal/store"
	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/pkg/errors"
	"sjsage522/producttracker/services/publisher"
)

// Gateway serves the message contract over the product and settings stores
type Gateway struct {
	products  *store.ProductStore
	settings  *store.SettingsStore
	publisher publisher.Publisher
	known     []string
	now       func() time.Time
	log       *logger.Logger
}

// New creates a gateway. pub may be nil when events are not published.
func New(products *store.ProductStore, pub publisher.Publisher) *Gateway {
	return &Gateway{
		products:  products,
		settings:  products.Settings(),
		publisher: pub,
		known:     extractor.SupportedSites(),
		now:       time.Now,
		log:       logger.ForGateway(),
	}
}

// SaveProduct applies the tracking and per-site gates and then saves the draft
func (g *Gateway) SaveProduct(ctx context.Context, d product.Draft) (product.SaveResult, error) {
	if !d.Valid() {
		return product.SaveResult{}, errors.NewValidation("gateway", "product title is required")
	}
	settings, err := g.settings.Get(ctx)
	if err != nil {
		return product.SaveResult{}, err
	}
	if !settings.TrackingEnabled {
		return product.Rejected(product.ReasonTrackingDisabled), nil
	}

	if site := strings.ToLower(d.Site); site != "" && settings.EnabledSites != nil {
		if !settings.SiteEnabled(site, g.known) {
			return product.Rejected(product.ReasonSiteDisabled), nil
		}
	}

	result, err := g.products.Save(ctx, d)
	if err != nil {
		return result, err
	}
	if result.Success {
		g.productSaved(ctx, *result.Product)
	}
	return result, nil
}

// productSaved publishes the saved record with the new collection size
func (g *Gateway) productSaved(ctx context.Context, r product.Record) {
	if g.publisher == nil {
		return
	}
	count, err := g.products.Count(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to count products")
		return
	}
	if err := g.publisher.Publish(ctx, publisher.ProductSaved(r, count, g.now())); err != nil {
		g.log.Warn().Err(err).Str("id", r.ID).Msg("Failed to publish product_saved")
	}
}

// Handle dispatches one message. Unknown types yield an ErrorResponse, not an
// error; errors are reserved for invalid payloads and persistence failures.
func (g *Gateway) Handle(ctx context.Context, req Request) (interface{}, error) {
	g.log.Debug().Str("type", req.Type).Msg("Handling message")

	switch req.Type {
	case TypeSaveProduct:
		if req.Product == nil {
			return nil, errors.NewValidation("gateway", "product is required")
		}
		return g.SaveProduct(ctx, *req.Product)

	case TypeGetProducts:
		return g.products.List(ctx)

	case TypeGetRecentProducts:
		return g.products.Recent(ctx, req.Limit)

	case TypeDeleteProduct:
		if err := g.products.Delete(ctx, req.ProductID); err != nil {
			return nil, err
		}
		return Ack{Success: true}, nil

	case TypeDeleteProducts:
		deleted, err := g.products.DeleteMany(ctx, req.ProductIDs)
		if err != nil {
			return nil, err
		}
		return Ack{Success: true, Deleted: &deleted}, nil

	case TypeClearAll:
		if err := g.products.ClearAll(ctx); err != nil {
			return nil, err
		}
		return Ack{Success: true}, nil

	case TypeGetSettings:
		return g.settings.Get(ctx)

	case TypeUpdateSettings:
		var patch store.SettingsPatch
		if req.Settings != nil {
			patch = *req.Settings
		}
		return g.settings.Update(ctx, patch)

	case TypeGetStorageUsage:
		return g.products.Usage(ctx)

	case TypeSearchProducts:
		return g.products.Search(ctx, req.Query)

	case TypeGetUniqueSites:
		return g.products.UniqueSites(ctx)

	case TypeCleanup:
		return g.products.Cleanup(ctx)

	case TypeGetProductsBySite:
		return g.products.BySite(ctx, req.Site)

	case TypeQueryProducts:
		var filter product.Filter
		if req.Filter != nil {
			filter = *req.Filter
		}
		return g.products.Query(ctx, filter)

	case TypeImportProducts:
		return g.products.Import(ctx, req.Products)

	default:
		return ErrorResponse{Error: UnknownMessage}, nil
	}
}
