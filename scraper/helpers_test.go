package scraper_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog-ingest/models"
	"catalog-ingest/scraper"
	"catalog-ingest/scraper/scrapertest"
	"catalog-ingest/utils"
)

// listAdapter reads <li class="item"> nodes; items with class "oos" are out
// of stock.
type listAdapter struct {
	entries    []scraper.Entry
	pagination scraper.PaginationConfig
	captcha    scraper.CaptchaConfig
	failWith   func(call int) error

	calls int
}

var _ scraper.SiteAdapter = (*listAdapter)(nil)

func (a *listAdapter) Vendor() string                       { return "Acme" }
func (a *listAdapter) Entries() []scraper.Entry             { return a.entries }
func (a *listAdapter) ReadySelector() string                { return "ul.items" }
func (a *listAdapter) Pagination() scraper.PaginationConfig { return a.pagination }
func (a *listAdapter) Captcha() scraper.CaptchaConfig       { return a.captcha }

func (a *listAdapter) IsOutOfStock(node *goquery.Selection) bool {
	return node.HasClass("oos")
}

func (a *listAdapter) Extract(ctx context.Context, page scraper.Page) ([]scraper.Listing, error) {
	a.calls++
	if a.failWith != nil {
		if err := a.failWith(a.calls); err != nil {
			return nil, err
		}
	}

	doc, err := scraper.Document(ctx, page)
	if err != nil {
		return nil, err
	}
	var out []scraper.Listing
	doc.Find("li.item").Each(func(_ int, s *goquery.Selection) {
		out = append(out, scraper.Listing{
			RawItem: models.RawItem{
				Title:     s.Find(".t").Text(),
				PriceText: s.Find(".p").Text(),
			},
			Node: s,
		})
	})
	return out, nil
}

// listPage renders items as a listing page. A title ending in "!oos" is
// rendered out of stock. extra is appended after the list.
func listPage(extra string, items ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="items">`)
	for _, it := range items {
		class := "item"
		if strings.HasSuffix(it, "!oos") {
			class += " oos"
			it = strings.TrimSuffix(it, "!oos")
		}
		fmt.Fprintf(&b, `<li class="%s"><span class="t">%s</span><span class="p">€ 19,99</span></li>`, class, it)
	}
	b.WriteString(`</ul>`)
	b.WriteString(extra)
	b.WriteString(`</body></html>`)
	return b.String()
}

func titles(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", prefix, i+1)
	}
	return out
}

func newTestDriver(site *scrapertest.Site, ocr scraper.OCR) (*scraper.Driver, *scrapertest.Browser) {
	logger := utils.NewNopLogger()
	browser := scrapertest.NewBrowser(site)
	evasion := scraper.NewEvasion(ocr, 0, 0, logger)
	driver := scraper.NewDriver(browser, evasion, scraper.DriverConfig{
		PageRetries: 2,
	}, logger)
	return driver, browser
}

func counterAdapter(urls ...string) *listAdapter {
	a := &listAdapter{pagination: scraper.PaginationConfig{Strategy: scraper.StrategyCounter}}
	for _, u := range urls {
		a.entries = append(a.entries, scraper.Entry{URL: u})
	}
	return a
}
