package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-ingest/models"
	"catalog-ingest/utils"
)

// DriverConfig bounds a vendor crawl.
type DriverConfig struct {
	PageRetries  int
	RetryDelay   time.Duration
	MaxPages     int
	ReadyTimeout time.Duration
	PageInterval time.Duration
}

// Result is what one vendor crawl collected.
type Result struct {
	Items []models.RawItem
	Stats models.CrawlStats
}

// Driver crawls one vendor at a time per call. Calls for different vendors
// may run concurrently; each owns its own Session.
type Driver struct {
	browser Browser
	evasion *Evasion
	cfg     DriverConfig
	logger  *utils.Logger
}

// NewDriver creates a Driver.
func NewDriver(browser Browser, evasion *Evasion, cfg DriverConfig, logger *utils.Logger) *Driver {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if cfg.PageRetries < 0 {
		cfg.PageRetries = 0
	}
	return &Driver{
		browser: browser,
		evasion: evasion,
		cfg:     cfg,
		logger:  logger,
	}
}

// Crawl walks every entry URL of adapter and returns the in-stock items whose
// titles were not seen earlier in the run. The returned error is non-nil only
// when the session could not be opened or ctx was cancelled; items gathered
// before cancellation are still returned.
func (d *Driver) Crawl(ctx context.Context, adapter SiteAdapter) (Result, error) {
	vendor := adapter.Vendor()
	logger := d.logger.ForVendor(vendor)

	var res Result
	sess, err := d.openSession(ctx, adapter, &res.Stats, logger)
	if err != nil {
		return res, err
	}
	defer sess.Close()

	logger.Info("[driver] Crawling %d entry URLs as %s", len(adapter.Entries()), sess.identity.UserAgent)

	for _, entry := range adapter.Entries() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.crawlEntry(ctx, sess, adapter, entry, &res, logger); err != nil {
			return res, err
		}
	}

	logger.Info("[driver] Crawl complete: %d items from %d pages (%d out of stock, %d duplicates)",
		len(res.Items), res.Stats.Pages, res.Stats.OutOfStock, res.Stats.Duplicates)
	return res, nil
}

func (d *Driver) openSession(ctx context.Context, adapter SiteAdapter, stats *models.CrawlStats, logger *utils.Logger) (*Session, error) {
	page, err := d.browser.NewPage(ctx)
	if err != nil {
		return nil, utils.NewNavigation(adapter.Vendor(), "open page", err)
	}

	identity, err := d.evasion.PrepareSession(ctx, page)
	if err != nil {
		page.Close()
		return nil, utils.NewNavigation(adapter.Vendor(), "prepare session", err)
	}

	nav := &Navigator{
		page:    page,
		evasion: d.evasion,
		limiter: utils.NewLimiter(d.cfg.PageInterval),
		retry: &utils.RetryConfig{
			MaxAttempts: d.cfg.PageRetries + 1,
			BaseDelay:   d.cfg.RetryDelay,
			Logger:      logger,
		},
		vendor:        adapter.Vendor(),
		readySelector: adapter.ReadySelector(),
		readyTimeout:  d.cfg.ReadyTimeout,
		captcha:       adapter.Captcha(),
		stats:         stats,
		logger:        logger,
	}

	return &Session{
		page:     page,
		identity: identity,
		seen:     utils.NewSeenSet(),
		nav:      nav,
	}, nil
}

func (d *Driver) crawlEntry(ctx context.Context, sess *Session, adapter SiteAdapter, entry Entry, res *Result, logger *utils.Logger) error {
	res.Stats.Entries++

	ctrl, err := NewController(adapter.Pagination(), sess.nav, d.cfg.MaxPages)
	if err != nil {
		return err
	}

	ready, err := ctrl.Start(ctx, entry.URL)
	if err != nil {
		return err
	}
	if !ready {
		res.Stats.EntriesSkipped++
		logger.Warn("[driver] Entry %s never became ready, skipping", entry.URL)
		return nil
	}

	for ctrl.State() == StateHasPage {
		page := d.extractPage(ctx, sess, adapter, entry, res, logger)
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("[driver] %s page %d: %d listings", entry.URL, ctrl.Pages(), page.Items)

		if err := ctrl.Advance(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// extractPage reads the current page, retrying extraction a bounded number of
// times, and appends the surviving items to res.
func (d *Driver) extractPage(ctx context.Context, sess *Session, adapter SiteAdapter, entry Entry, res *Result, logger *utils.Logger) PageResult {
	res.Stats.Pages++

	retry := &utils.RetryConfig{
		MaxAttempts: d.cfg.PageRetries + 1,
		BaseDelay:   d.cfg.RetryDelay,
		Logger:      logger,
	}

	var listings []Listing
	err := retry.Do(ctx, fmt.Sprintf("extract %s", entry.URL), func() error {
		found, err := adapter.Extract(ctx, sess.page)
		if err != nil {
			if utils.IsType(err, utils.ErrorTypeLayout) {
				return err
			}
			return utils.NewExtraction(adapter.Vendor(), "extract listings", err)
		}
		listings = found
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return PageResult{}
		}
		if utils.IsType(err, utils.ErrorTypeLayout) {
			res.Stats.LayoutMismatches++
			logger.Warn("[driver] Layout mismatch on %s: %v", entry.URL, err)
			return PageResult{}
		}
		res.Stats.PagesFailed++
		logger.Err(err, "[driver] Skipping page of %s", entry.URL)
		return PageResult{Failed: true}
	}

	for _, l := range listings {
		if l.Node != nil && adapter.IsOutOfStock(l.Node) {
			res.Stats.OutOfStock++
			continue
		}

		item := l.RawItem
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			continue
		}
		if !sess.seen.Add(item.Title) {
			res.Stats.Duplicates++
			continue
		}
		if item.Category == "" {
			item.Category = entry.Category
		}
		res.Items = append(res.Items, item)
	}

	return PageResult{Items: len(listings)}
}
