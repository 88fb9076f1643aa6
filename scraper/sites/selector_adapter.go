package sites

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog-ingest/models"
	"catalog-ingest/scraper"
	"catalog-ingest/utils"
)

// SelectorAdapter is a SiteAdapter driven entirely by an AdapterSpec.
type SelectorAdapter struct {
	spec AdapterSpec
	base *url.URL
}

var _ scraper.SiteAdapter = (*SelectorAdapter)(nil)

// NewSelectorAdapter creates an adapter from spec.
func NewSelectorAdapter(spec AdapterSpec) *SelectorAdapter {
	a := &SelectorAdapter{spec: spec}
	if spec.BaseURL != "" {
		if u, err := url.Parse(spec.BaseURL); err == nil {
			a.base = u
		}
	}
	return a
}

func (a *SelectorAdapter) Vendor() string                       { return a.spec.Name }
func (a *SelectorAdapter) Entries() []scraper.Entry             { return a.spec.Entries }
func (a *SelectorAdapter) ReadySelector() string                { return a.spec.ReadySelector }
func (a *SelectorAdapter) Pagination() scraper.PaginationConfig { return a.spec.Pagination }
func (a *SelectorAdapter) Captcha() scraper.CaptchaConfig       { return a.spec.Captcha }

// Extract reads every item node on the current page.
func (a *SelectorAdapter) Extract(ctx context.Context, page scraper.Page) ([]scraper.Listing, error) {
	doc, err := scraper.Document(ctx, page)
	if err != nil {
		return nil, err
	}

	nodes := doc.Find(a.spec.ItemSelector)
	if nodes.Length() == 0 && a.spec.ContainerSelector != "" {
		if a.spec.NoResultsSelector != "" && doc.Find(a.spec.NoResultsSelector).Length() > 0 {
			return nil, nil
		}
		if doc.Find(a.spec.ContainerSelector).Length() == 0 {
			return nil, utils.NewLayout(a.spec.Name, "listing container "+a.spec.ContainerSelector+" is missing")
		}
	}

	pageURL, _ := page.URL(ctx)

	listings := make([]scraper.Listing, 0, nodes.Length())
	nodes.Each(func(_ int, node *goquery.Selection) {
		item := models.RawItem{
			Title:     collapse(read(node, &a.spec.Fields.Title)),
			PriceText: collapse(read(node, &a.spec.Fields.Price)),
		}
		if f := a.spec.Fields.Link; f != nil {
			item.Link = a.resolve(pageURL, read(node, f))
		}
		if f := a.spec.Fields.Thumbnail; f != nil {
			item.ThumbnailURL = a.resolve(pageURL, read(node, f))
		}
		if f := a.spec.Fields.Category; f != nil {
			item.Category = collapse(read(node, f))
		}
		listings = append(listings, scraper.Listing{RawItem: item, Node: node})
	})
	return listings, nil
}

// IsOutOfStock applies the out_of_stock rule to one item node.
func (a *SelectorAdapter) IsOutOfStock(node *goquery.Selection) bool {
	rule := a.spec.OutOfStock
	if rule.Selector != "" && node.Find(rule.Selector).Length() > 0 {
		return true
	}
	if rule.Text != "" && strings.Contains(strings.ToLower(node.Text()), strings.ToLower(rule.Text)) {
		return true
	}
	return false
}

func read(node *goquery.Selection, f *Field) string {
	sel := node
	if f.Selector != "." {
		sel = node.Find(f.Selector).First()
	}
	if f.Attr != "" {
		val, _ := sel.Attr(f.Attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(sel.Text())
}

// resolve makes ref absolute against the base URL, falling back to the page URL.
func (a *SelectorAdapter) resolve(pageURL, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	if a.base != nil {
		return a.base.ResolveReference(r).String()
	}
	if p, err := url.Parse(pageURL); err == nil && p.IsAbs() {
		return p.ResolveReference(r).String()
	}
	return ref
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
