package services

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"catalog-ingest/models"
	"catalog-ingest/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate folds vendor reports into one run summary. Price statistics only
// consider items whose price could be recovered (price > 0).
func (s *InsightService) Generate(reports []models.VendorReport) *models.RunSummary {
	summary := &models.RunSummary{Reports: reports}
	if len(reports) == 0 {
		return summary
	}

	summary.Vendors = len(reports)

	var prices []decimal.Decimal
	for _, r := range reports {
		switch {
		case r.Skipped:
			summary.VendorsSkipped++
		case r.Failed():
			summary.VendorsFailed++
		case r.NoProducts:
			summary.VendorsEmpty++
		}
		summary.Succeeded += r.Result.Succeeded
		summary.Failed += r.Result.Failed
		summary.Created += r.Result.Created
		summary.Updated += r.Result.Updated
		summary.Repaired += r.Result.Repaired

		for _, p := range r.Result.Prices {
			if p.IsPositive() {
				prices = append(prices, p)
			}
		}
	}

	if len(prices) > 0 {
		summary.MinPrice = prices[0]
		summary.MaxPrice = prices[0]
		total := decimal.Zero
		for _, p := range prices {
			total = total.Add(p)
			if p.LessThan(summary.MinPrice) {
				summary.MinPrice = p
			}
			if p.GreaterThan(summary.MaxPrice) {
				summary.MaxPrice = p
			}
		}
		summary.AveragePrice = total.Div(decimal.NewFromInt(int64(len(prices)))).Round(2)
	}

	return summary
}

// Print writes the summary to stdout.
func (s *InsightService) Print(r *models.RunSummary) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.RunSummary) {
	sep := strings.Repeat("═", 78)
	thin := strings.Repeat("─", 78)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📦 CATALOG INGESTION SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Vendors processed : \033[1m%d\033[0m\n", r.Vendors)
	fmt.Fprintf(w, "  Vendors failed    : \033[1m%d\033[0m\n", r.VendorsFailed)
	fmt.Fprintf(w, "  Vendors empty     : \033[1m%d\033[0m\n", r.VendorsEmpty)
	fmt.Fprintf(w, "  Vendors skipped   : \033[1m%d\033[0m\n", r.VendorsSkipped)
	fmt.Fprintf(w, "  Items written     : \033[1;32m%d\033[0m (created %d, updated %d, repaired %d)\n",
		r.Succeeded, r.Created, r.Updated, r.Repaired)
	fmt.Fprintf(w, "  Items failed      : \033[1;31m%d\033[0m\n", r.Failed)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice.IsPositive() {
		fmt.Fprintf(w, "  Average price : \033[1;32m%s\033[0m\n", r.AveragePrice.StringFixed(2))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%s\033[0m\n", r.MinPrice.StringFixed(2))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%s\033[0m\n", r.MaxPrice.StringFixed(2))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Per vendor
	fmt.Fprintf(w, "\033[1;33m  Vendors\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Reports) == 0 {
		fmt.Fprintf(w, "  No vendors were run\n")
	}
	for _, v := range r.Reports {
		fmt.Fprintf(w, "  %-24s %s  items %-4d ok %-4d failed %-4d pages %-3d captchas %d\n",
			truncate(v.Vendor, 24), vendorStatus(v), v.Items, v.Result.Succeeded, v.Result.Failed,
			v.Crawl.Pages, v.Crawl.Captchas)
		if v.Failed() {
			fmt.Fprintf(w, "    \033[31m%s\033[0m\n", truncate(v.Error, 72))
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func vendorStatus(r models.VendorReport) string {
	switch {
	case r.Skipped:
		return "\033[1;36mskipped    \033[0m"
	case r.Failed():
		return "\033[1;31mfailed     \033[0m"
	case r.NoProducts:
		return "\033[1;33mno products\033[0m"
	default:
		return "\033[1;32mok         \033[0m"
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
