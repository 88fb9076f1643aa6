package storage

import (
	"context"
	"errors"
	"time"

	"catalog-ingest/models"
)

var (
	// ErrVendorNotFound is returned when a vendor has not been provisioned.
	ErrVendorNotFound = errors.New("vendor not found")
	// ErrProductNotFound is returned when updating a row that no longer exists.
	ErrProductNotFound = errors.New("product not found")
)

// CatalogStore is the storage surface the Catalog Writer depends on.
type CatalogStore interface {
	FindVendor(ctx context.Context, name string) (*models.Vendor, error)
	// FindProducts returns every row for (title, vendorID), newest first.
	FindProducts(ctx context.Context, title, vendorID string) ([]models.CatalogProduct, error)
	DeleteProducts(ctx context.Context, ids []string) error
	CreateProduct(ctx context.Context, vendorID string, fields models.ProductFields) (*models.CatalogProduct, error)
	UpdateProduct(ctx context.Context, id string, fields models.ProductFields) (*models.CatalogProduct, error)
}

// VendorAdmin provisions vendors out of band.
type VendorAdmin interface {
	CreateVendor(ctx context.Context, v models.Vendor) (*models.Vendor, error)
	ListVendors(ctx context.Context) ([]models.Vendor, error)
}

// KeyLocker serialises work on one key. The returned func releases the lock.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// RawItemWriter is the interface for persisting unprocessed scraped data.
type RawItemWriter interface {
	WriteRaw(vendor string, items []models.RawItem) error
	Close() error
}

// ReportPublisher ships vendor run reports to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, report models.VendorReport) error
	Close() error
}

// Blocklist keeps vendors that blocked us out of rotation for a while.
type Blocklist interface {
	IsBlocked(vendor string) (bool, error)
	Block(vendor string, d time.Duration) error
	Unblock(vendor string) error
}
