package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IngestResult counts the outcome of one Catalog Writer batch.
type IngestResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Repaired  int `json:"repaired"`

	// Prices of the items written successfully, used for the run summary.
	Prices []decimal.Decimal `json:"-"`
}

// CrawlStats describes what one vendor crawl went through.
type CrawlStats struct {
	Entries          int `json:"entries"`
	EntriesSkipped   int `json:"entries_skipped"`
	Pages            int `json:"pages"`
	PagesFailed      int `json:"pages_failed"`
	LayoutMismatches int `json:"layout_mismatches"`
	OutOfStock       int `json:"out_of_stock"`
	Duplicates       int `json:"duplicates"`
	Captchas         int `json:"captchas"`
}

// VendorReport is the operator-visible outcome of one vendor run.
type VendorReport struct {
	Vendor     string        `json:"vendor"`
	Items      int           `json:"items"`
	Result     IngestResult  `json:"result"`
	Crawl      CrawlStats    `json:"crawl"`
	NoProducts bool          `json:"no_products"`
	Skipped    bool          `json:"skipped"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Failed reports whether the vendor run aborted.
func (r *VendorReport) Failed() bool {
	return r.Error != ""
}

// RunSummary aggregates the vendor reports of one ingestion pass.
type RunSummary struct {
	Vendors        int
	VendorsFailed  int
	VendorsEmpty   int
	VendorsSkipped int
	Succeeded      int
	Failed         int
	Created        int
	Updated        int
	Repaired       int
	AveragePrice   decimal.Decimal
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal
	Reports        []VendorReport
}
