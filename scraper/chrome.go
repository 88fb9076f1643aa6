package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"catalog-ingest/utils"
)

const (
	defaultNavTimeout = 30 * time.Second
	actionTimeout     = 20 * time.Second
)

// ChromeOptions configures the local Chrome process.
type ChromeOptions struct {
	Bin      string
	Headless bool
}

// Chrome is a Browser backed by one Chrome process driven over CDP.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChrome starts Chrome. The process lives until Close.
func NewChrome(opts ChromeOptions, logger *utils.Logger) (*Chrome, error) {
	chromeBin := findChromeBinary(opts.Bin)
	logger.Info("[chrome] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Chrome{
		allocCancel:   cancelAlloc,
		browserCtx:    browserCtx,
		browserCancel: cancelBrowser,
	}, nil
}

// NewPage opens a new tab.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel, navTimeout: defaultNavTimeout}, nil
}

// Close shuts Chrome down.
func (c *Chrome) Close() error {
	c.browserCancel()
	c.allocCancel()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	navTimeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	timeout := p.navTimeout
	p.mu.Unlock()

	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitForSelector(ctx context.Context, sel string, timeout time.Duration, visible bool) error {
	wait := chromedp.WaitReady(sel, chromedp.ByQuery)
	if visible {
		wait = chromedp.WaitVisible(sel, chromedp.ByQuery)
	}
	if err := p.run(ctx, timeout, wait); err != nil {
		return fmt.Errorf("wait for %q: %w", sel, err)
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, expr string, res any) error {
	if err := p.run(ctx, actionTimeout, chromedp.Evaluate(expr, res)); err != nil {
		return fmt.Errorf("chromedp evaluate: %w", err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, sel string) error {
	if err := p.run(ctx, actionTimeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", sel, err)
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context, sel string) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, actionTimeout, chromedp.Screenshot(sel, &buf, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return nil, fmt.Errorf("screenshot %q: %w", sel, err)
	}
	return buf, nil
}

func (p *chromePage) SendKeys(ctx context.Context, sel, text string) error {
	if err := p.run(ctx, actionTimeout, chromedp.SendKeys(sel, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("type into %q: %w", sel, err)
	}
	return nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, actionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Configure applies a user agent override and viewport to the tab.
func (p *chromePage) Configure(ctx context.Context, id Identity) error {
	err := p.run(ctx, actionTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(id.UserAgent).Do(ctx)
		}),
		chromedp.EmulateViewport(id.Width, id.Height),
	)
	if err != nil {
		return fmt.Errorf("configure identity: %w", err)
	}

	if id.NavTimeout > 0 {
		p.mu.Lock()
		p.navTimeout = id.NavTimeout
		p.mu.Unlock()
	}
	return nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
