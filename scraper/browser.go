package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Browser opens pages. One Browser is shared by all vendor runs; each run owns
// its own Page.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab.
type Page interface {
	Goto(ctx context.Context, url string) error
	// WaitForSelector blocks until sel is in the DOM (or visible when visible
	// is set) or the timeout expires.
	WaitForSelector(ctx context.Context, sel string, timeout time.Duration, visible bool) error
	Evaluate(ctx context.Context, expr string, res any) error
	Click(ctx context.Context, sel string) error
	Screenshot(ctx context.Context, sel string) ([]byte, error)
	SendKeys(ctx context.Context, sel, text string) error
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Configure(ctx context.Context, id Identity) error
	Close() error
}

// Identity is the browser fingerprint a session presents to a vendor.
type Identity struct {
	UserAgent  string
	Width      int64
	Height     int64
	NavTimeout time.Duration
}

// ScrollHeightExpr reads the scrollable height of the document.
const ScrollHeightExpr = `document.body.scrollHeight`

// ScrollByExpr scrolls the window down by step pixels.
func ScrollByExpr(step int) string {
	return fmt.Sprintf(`window.scrollBy(0, %d)`, step)
}

// Document snapshots the current DOM of page for goquery.
func Document(ctx context.Context, page Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return doc, nil
}

// exists reports whether sel matches anything on the current page.
func exists(ctx context.Context, page Page, sel string) (bool, error) {
	n, err := countNodes(ctx, page, sel)
	return n > 0, err
}

func countNodes(ctx context.Context, page Page, sel string) (int, error) {
	doc, err := Document(ctx, page)
	if err != nil {
		return 0, err
	}
	return doc.Find(sel).Length(), nil
}

// attr returns the first value of name on nodes matching sel.
func attr(ctx context.Context, page Page, sel, name string) (string, bool, error) {
	doc, err := Document(ctx, page)
	if err != nil {
		return "", false, err
	}
	val, ok := doc.Find(sel).First().Attr(name)
	return strings.TrimSpace(val), ok, nil
}
