package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is one source website whose catalog is mirrored. Vendors are
// provisioned out of band and only referenced by the ingestion engine.
type Vendor struct {
	ID        string
	Name      string
	Logo      string
	Website   string
	CreatedAt time.Time
}

// RawItem holds one scraped, not yet normalised product record.
// It is produced by a site adapter for a single page and never persisted as-is.
type RawItem struct {
	Title        string
	PriceText    string
	Link         string
	ThumbnailURL string
	Category     string
}

// CatalogProduct is the persisted product record keyed by (Title, VendorID).
type CatalogProduct struct {
	ID        string
	VendorID  string
	Title     string
	Price     decimal.Decimal
	Link      string
	Thumbnail string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductFields are the mutable columns written on create or update.
type ProductFields struct {
	Title     string
	Price     decimal.Decimal
	Link      string
	Thumbnail string
	Category  string
}
