package sites

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-ingest/scraper"
	"catalog-ingest/scraper/scrapertest"
	"catalog-ingest/utils"
)

const acmeYAML = `
vendors:
  - name: Acme
    base_url: https://acme.test
    entries:
      - url: https://acme.test/kettles?page={page}
        category: Kettles
    ready_selector: "ul.grid"
    container_selector: "ul.grid"
    no_results_selector: ".nothing-here"
    item_selector: "ul.grid li.product"
    fields:
      title: { selector: ".name" }
      price: { selector: ".price" }
      link: { selector: "a", attr: "href" }
      thumbnail: { selector: "img", attr: "src" }
    out_of_stock:
      selector: ".sold-out"
      text: "unavailable"
    pagination:
      strategy: counter
      empty_page_tolerance: 1
  - name: Brightline
    entries:
      - url: https://brightline.test/lighting
    ready_selector: ".catalog"
    item_selector: ".catalog .card"
    fields:
      title: { selector: ".card-title" }
      price: { selector: ".card-price" }
    pagination:
      strategy: load_more
      load_more_selector: "button.more"
      wait_timeout: 8s
`

const acmePage = `<html><body><ul class="grid">
  <li class="product">
    <a href="/p/steel-kettle"><img src="/img/steel.jpg"></a>
    <span class="name">  Steel
      Kettle </span>
    <span class="price">1.299,00 €</span>
  </li>
  <li class="product">
    <a href="https://cdn.acme.test/p/glass"><img src="//cdn.acme.test/glass.jpg"></a>
    <span class="name">Glass Kettle</span>
    <span class="price">49,90 €</span>
    <span class="sold-out">Sold out</span>
  </li>
  <li class="product">
    <a href="/p/retro"></a>
    <span class="name">Retro Kettle</span>
    <span class="price">Currently Unavailable</span>
  </li>
</ul></body></html>`

func parseAcme(t *testing.T) []*SelectorAdapter {
	t.Helper()
	adapters, err := Parse(strings.NewReader(acmeYAML))
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	return adapters
}

func pageWith(t *testing.T, url, html string) scraper.Page {
	t.Helper()
	site := &scrapertest.Site{Pages: map[string]string{url: html}}
	page, err := scrapertest.NewBrowser(site).NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, page.Goto(context.Background(), url))
	return page
}

func TestParseAdapters(t *testing.T) {
	adapters := parseAcme(t)
	acme, bright := adapters[0], adapters[1]

	assert.Equal(t, "Acme", acme.Vendor())
	assert.Equal(t, "ul.grid", acme.ReadySelector())
	require.Len(t, acme.Entries(), 1)
	assert.Equal(t, "Kettles", acme.Entries()[0].Category)
	assert.Equal(t, scraper.StrategyCounter, acme.Pagination().Strategy)
	assert.Equal(t, 1, acme.Pagination().EmptyPageTolerance)

	assert.Equal(t, scraper.StrategyLoadMore, bright.Pagination().Strategy)
	assert.Equal(t, 8*time.Second, bright.Pagination().WaitTimeout)
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no vendors", "vendors: []"},
		{"missing title field", `
vendors:
  - name: X
    entries: [{url: "https://x.test"}]
    ready_selector: body
    item_selector: li
    fields:
      price: { selector: ".p" }
    pagination: { strategy: counter }
`},
		{"unknown strategy", `
vendors:
  - name: X
    entries: [{url: "https://x.test"}]
    ready_selector: body
    item_selector: li
    fields:
      title: { selector: ".t" }
      price: { selector: ".p" }
    pagination: { strategy: carousel }
`},
		{"load more without control", `
vendors:
  - name: X
    entries: [{url: "https://x.test"}]
    ready_selector: body
    item_selector: li
    fields:
      title: { selector: ".t" }
      price: { selector: ".p" }
    pagination: { strategy: load_more }
`},
		{"duplicate vendor", `
vendors:
  - name: X
    entries: [{url: "https://x.test"}]
    ready_selector: body
    item_selector: li
    fields: { title: { selector: ".t" }, price: { selector: ".p" } }
    pagination: { strategy: counter }
  - name: x
    entries: [{url: "https://x.test/2"}]
    ready_selector: body
    item_selector: li
    fields: { title: { selector: ".t" }, price: { selector: ".p" } }
    pagination: { strategy: counter }
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(acmeYAML), 0o644))

	adapters, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, adapters, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedAdaptersFileIsValid(t *testing.T) {
	adapters, err := Load(filepath.Join("..", "..", "vendors.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, adapters)
}

func TestFilter(t *testing.T) {
	adapters := parseAcme(t)

	all, err := Filter(adapters, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := Filter(adapters, []string{" brightline "})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Brightline", one[0].Vendor())

	_, err = Filter(adapters, []string{"Nobody"})
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	acme := parseAcme(t)[0]
	page := pageWith(t, "https://acme.test/kettles?page=1", acmePage)

	listings, err := acme.Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	first := listings[0]
	assert.Equal(t, "Steel Kettle", first.Title)
	assert.Equal(t, "1.299,00 €", first.PriceText)
	assert.Equal(t, "https://acme.test/p/steel-kettle", first.Link)
	assert.Equal(t, "https://acme.test/img/steel.jpg", first.ThumbnailURL)

	assert.Equal(t, "https://cdn.acme.test/p/glass", listings[1].Link)
	assert.Equal(t, "https://cdn.acme.test/glass.jpg", listings[1].ThumbnailURL)
	assert.Empty(t, listings[2].ThumbnailURL)
}

func TestIsOutOfStock(t *testing.T) {
	acme := parseAcme(t)[0]
	page := pageWith(t, "https://acme.test/kettles?page=1", acmePage)

	listings, err := acme.Extract(context.Background(), page)
	require.NoError(t, err)

	assert.False(t, acme.IsOutOfStock(listings[0].Node))
	assert.True(t, acme.IsOutOfStock(listings[1].Node), "sold-out badge")
	assert.True(t, acme.IsOutOfStock(listings[2].Node), "unavailable text")
}

func TestExtractDistinguishesEmptyFromBrokenLayout(t *testing.T) {
	acme := parseAcme(t)[0]

	empty := pageWith(t, "https://acme.test/kettles?page=9",
		`<html><body><ul class="grid"></ul><p class="nothing-here">No products</p></body></html>`)
	listings, err := acme.Extract(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, listings)

	broken := pageWith(t, "https://acme.test/kettles?page=9",
		`<html><body><div class="new-grid"><div class="tile">Kettle</div></div></body></html>`)
	_, err = acme.Extract(context.Background(), broken)
	assert.True(t, utils.IsType(err, utils.ErrorTypeLayout))
}

func TestAdapterDrivesCrawl(t *testing.T) {
	acme := parseAcme(t)[0]
	site := &scrapertest.Site{Pages: map[string]string{
		"https://acme.test/kettles?page=1": acmePage,
		"https://acme.test/kettles?page=2": `<html><body><ul class="grid"></ul></body></html>`,
		"https://acme.test/kettles?page=3": `<html><body><ul class="grid"></ul></body></html>`,
	}}
	logger := utils.NewNopLogger()
	driver := scraper.NewDriver(scrapertest.NewBrowser(site), scraper.NewEvasion(nil, 0, 0, logger),
		scraper.DriverConfig{}, logger)

	res, err := driver.Crawl(context.Background(), acme)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Steel Kettle", res.Items[0].Title)
	assert.Equal(t, "Kettles", res.Items[0].Category)
	assert.Equal(t, 2, res.Stats.OutOfStock)
	assert.Equal(t, 3, res.Stats.Pages, "one empty page is tolerated")
}
