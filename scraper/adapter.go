package scraper

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"catalog-ingest/models"
)

// Entry is one starting URL of a vendor catalog.
type Entry struct {
	URL      string `mapstructure:"url" validate:"required"`
	Category string `mapstructure:"category"`
}

// Listing is an extracted item together with the DOM node it came from, so
// the adapter can judge stock state on the same node.
type Listing struct {
	models.RawItem
	Node *goquery.Selection
}

// SiteAdapter describes how to read one vendor's listing pages. Adding a
// vendor means adding an adapter, never touching the driver.
type SiteAdapter interface {
	Vendor() string
	Entries() []Entry
	// ReadySelector must be present before a page is extracted.
	ReadySelector() string
	// Extract reads the listings on the current page. A layout error means
	// the listing container is missing altogether.
	Extract(ctx context.Context, page Page) ([]Listing, error)
	IsOutOfStock(node *goquery.Selection) bool
	Pagination() PaginationConfig
	Captcha() CaptchaConfig
}
