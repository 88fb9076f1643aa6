// Package scrapertest provides an in-memory browser serving canned HTML.
package scrapertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"catalog-ingest/scraper"
)

// Site is the fake web: pages by URL, click targets and scroll heights.
type Site struct {
	mu sync.Mutex

	// Pages maps a URL to the HTML served for it.
	Pages map[string]string
	// Clicks maps "url selector" to the URL whose HTML replaces the page
	// after the click.
	Clicks map[string]string
	// Heights are successive document heights returned by the scroll
	// height probe. The last value repeats.
	Heights []int
	// Failures makes Goto fail this many times for a URL before succeeding.
	Failures map[string]int

	visits []string
}

// Visits returns every URL navigated to, in order.
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// Browser hands out pages on a Site.
type Browser struct {
	Site *Site

	mu    sync.Mutex
	pages []*Page
}

var _ scraper.Browser = (*Browser)(nil)

// NewBrowser creates a Browser for site.
func NewBrowser(site *Site) *Browser {
	return &Browser{Site: site}
}

func (b *Browser) NewPage(ctx context.Context) (scraper.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Page{site: b.Site}
	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// OpenPages returns the pages handed out so far.
func (b *Browser) OpenPages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

func (b *Browser) Close() error { return nil }

// Page is a fake tab.
type Page struct {
	site *Site

	mu        sync.Mutex
	current   string
	html      string
	heightIdx int
	identity  scraper.Identity
	typed     []string
	closed    bool
}

var _ scraper.Page = (*Page)(nil)

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.site.mu.Lock()
	defer p.site.mu.Unlock()

	p.site.visits = append(p.site.visits, url)
	if n := p.site.Failures[url]; n > 0 {
		p.site.Failures[url] = n - 1
		return fmt.Errorf("net::ERR_CONNECTION_RESET at %s", url)
	}
	html, ok := p.site.Pages[url]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}

	p.mu.Lock()
	p.current, p.html = url, html
	p.mu.Unlock()
	return nil
}

func (p *Page) WaitForSelector(ctx context.Context, sel string, _ time.Duration, _ bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.find(sel).Length() == 0 {
		return fmt.Errorf("wait for %q: %w", sel, context.DeadlineExceeded)
	}
	return nil
}

func (p *Page) Evaluate(ctx context.Context, expr string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case expr == scraper.ScrollHeightExpr:
		h := p.nextHeight()
		if out, ok := res.(*int); ok {
			*out = h
		}
		return nil
	case strings.HasPrefix(expr, "window.scrollBy"):
		return nil
	default:
		return fmt.Errorf("unsupported expression %q", expr)
	}
}

func (p *Page) nextHeight() int {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if len(p.site.Heights) == 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.heightIdx
	if i >= len(p.site.Heights) {
		i = len(p.site.Heights) - 1
	} else {
		p.heightIdx++
	}
	return p.site.Heights[i]
}

func (p *Page) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.find(sel).Length() == 0 {
		return fmt.Errorf("click %q: no such node", sel)
	}

	p.mu.Lock()
	key := p.current + " " + sel
	p.mu.Unlock()

	p.site.mu.Lock()
	target, ok := p.site.Clicks[key]
	html := p.site.Pages[target]
	p.site.mu.Unlock()

	if ok {
		p.mu.Lock()
		p.current, p.html = target, html
		p.mu.Unlock()
	}
	return nil
}

func (p *Page) Screenshot(_ context.Context, sel string) ([]byte, error) {
	if p.find(sel).Length() == 0 {
		return nil, fmt.Errorf("screenshot %q: no such node", sel)
	}
	return []byte("png:" + sel), nil
}

func (p *Page) SendKeys(_ context.Context, sel, text string) error {
	if p.find(sel).Length() == 0 {
		return fmt.Errorf("type into %q: no such node", sel)
	}
	p.mu.Lock()
	p.typed = append(p.typed, text)
	p.mu.Unlock()
	return nil
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return "<html><body></body></html>", nil
	}
	return p.html, nil
}

func (p *Page) Configure(_ context.Context, id scraper.Identity) error {
	p.mu.Lock()
	p.identity = id
	p.mu.Unlock()
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Identity returns the identity applied by Configure.
func (p *Page) Identity() scraper.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// Typed returns everything sent with SendKeys.
func (p *Page) Typed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.typed...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) find(sel string) *goquery.Selection {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &goquery.Selection{}
	}
	return doc.Find(sel)
}

// OCR answers every image with a fixed text.
type OCR struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls int
}

var _ scraper.OCR = (*OCR)(nil)

func (o *OCR) Recognize(context.Context, []byte) (string, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	return o.Text, o.Err
}

// Calls returns how many images were recognised.
func (o *OCR) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}
