package gateway

import (
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/internal/store"
)

// Message types
const (
	TypeSaveProduct       = "SAVE_PRODUCT"
	TypeGetProducts       = "GET_PRODUCTS"
	TypeGetRecentProducts = "GET_RECENT_PRODUCTS"
	TypeDeleteProduct     = "DELETE_PRODUCT"
	TypeDeleteProducts    = "DELETE_PRODUCTS"
	TypeClearAll          = "CLEAR_ALL"
	TypeGetSettings       = "GET_SETTINGS"
	TypeUpdateSettings    = "UPDATE_SETTINGS"
	TypeGetStorageUsage   = "GET_STORAGE_USAGE"
	TypeSearchProducts    = "SEARCH_PRODUCTS"
	TypeGetUniqueSites    = "GET_UNIQUE_SITES"
	TypeCleanup           = "CLEANUP"
	TypeGetProductsBySite = "GET_PRODUCTS_BY_SITE"
	TypeQueryProducts     = "QUERY_PRODUCTS"
	TypeImportProducts    = "IMPORT_PRODUCTS"
)

// UnknownMessage is the error text for unrecognized message types
const UnknownMessage = "Unknown message type"

// Request is the message envelope. Only the fields used by Type are read.
type Request struct {
	Type       string               `json:"type"`
	Product    *product.Draft       `json:"product,omitempty"`
	Limit      int                  `json:"limit,omitempty"`
	ProductID  string               `json:"productId,omitempty"`
	ProductIDs []string             `json:"productIds,omitempty"`
	Settings   *store.SettingsPatch `json:"settings,omitempty"`
	Query      string               `json:"query,omitempty"`
	Site       string               `json:"site,omitempty"`
	Filter     *product.Filter      `json:"filter,omitempty"`
	Products   []product.Record     `json:"products,omitempty"`
}

// Ack acknowledges a mutation
type Ack struct {
	Success bool `json:"success"`
	Deleted *int `json:"deleted,omitempty"`
}

// ErrorResponse is returned for requests the gateway cannot serve
type ErrorResponse struct {
	Error string `json:"error"`
}
