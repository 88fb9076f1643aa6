package services

import (
	"context"
	"time"

	"catalog-ingest/models"
	"catalog-ingest/scraper"
	"catalog-ingest/storage"
	"catalog-ingest/utils"
)

// Crawler collects raw items for one vendor. *scraper.Driver implements it.
type Crawler interface {
	Crawl(ctx context.Context, adapter scraper.SiteAdapter) (scraper.Result, error)
}

var _ Crawler = (*scraper.Driver)(nil)

// OrchestratorConfig bounds a full ingestion pass.
type OrchestratorConfig struct {
	MaxConcurrency int
	// VendorStagger spaces out vendor starts.
	VendorStagger time.Duration
	// BlockTime is how long a vendor that answered only with CAPTCHAs is
	// left alone. Zero disables blocking.
	BlockTime time.Duration
}

// Orchestrator runs every vendor's crawl and hands the items to the
// Catalog Writer.
type Orchestrator struct {
	crawler   Crawler
	writer    *CatalogWriter
	cleaner   *Cleaner
	raw       storage.RawItemWriter
	reports   storage.ReportPublisher
	blocklist storage.Blocklist
	cfg       OrchestratorConfig
	logger    *utils.Logger
}

// Option configures optional Orchestrator integrations.
type Option func(*Orchestrator)

// WithRawWriter exports every crawled item before cleaning.
func WithRawWriter(w storage.RawItemWriter) Option {
	return func(o *Orchestrator) { o.raw = w }
}

// WithReportPublisher publishes each vendor report when the vendor finishes.
func WithReportPublisher(p storage.ReportPublisher) Option {
	return func(o *Orchestrator) { o.reports = p }
}

// WithBlocklist skips blocked vendors and blocks those that only served CAPTCHAs.
func WithBlocklist(b storage.Blocklist) Option {
	return func(o *Orchestrator) { o.blocklist = b }
}

func NewOrchestrator(crawler Crawler, writer *CatalogWriter, cfg OrchestratorConfig, logger *utils.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		crawler: crawler,
		writer:  writer,
		cleaner: NewCleaner(logger),
		cfg:     cfg,
		logger:  logger.ForComponent("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run ingests every adapter's vendor, at most MaxConcurrency at a time, and
// returns one report per adapter in input order. The error is non-nil when
// ctx ended before every vendor could start; those vendors are reported as
// failed.
func (o *Orchestrator) Run(ctx context.Context, adapters []scraper.SiteAdapter) ([]models.VendorReport, error) {
	reports := make([]models.VendorReport, len(adapters))
	for i, a := range adapters {
		reports[i] = models.VendorReport{Vendor: a.Vendor(), Error: "not started"}
	}

	o.logger.Info("Starting ingestion of %d vendors (concurrency %d)", len(adapters), o.cfg.MaxConcurrency)
	pool := utils.NewWorkerPool(ctx, o.cfg.MaxConcurrency, o.cfg.VendorStagger)
	for i, a := range adapters {
		pool.Submit(func(ctx context.Context) {
			reports[i] = o.runVendor(ctx, a)
		})
	}
	err := pool.Wait()
	if err != nil {
		o.logger.Err(err, "Ingestion pass interrupted")
	}
	return reports, err
}

func (o *Orchestrator) runVendor(ctx context.Context, adapter scraper.SiteAdapter) models.VendorReport {
	name := adapter.Vendor()
	logger := o.logger.ForVendor(name)
	start := time.Now()
	report := models.VendorReport{Vendor: name}

	defer func() {
		report.Duration = time.Since(start)
		report.FinishedAt = time.Now()
		o.publish(ctx, report, logger)
	}()

	if o.blocklist != nil {
		blocked, err := o.blocklist.IsBlocked(name)
		if err != nil {
			logger.Warn("Blocklist lookup failed, crawling anyway: %v", err)
		}
		if blocked {
			logger.Warn("Vendor is cooling down after an anti-bot block, skipping")
			report.Skipped = true
			return report
		}
	}

	vendor, err := o.writer.ResolveVendor(ctx, name)
	if err != nil {
		logger.Err(err, "Cannot ingest vendor")
		report.Error = err.Error()
		return report
	}

	res, err := o.crawler.Crawl(ctx, adapter)
	report.Crawl = res.Stats
	if err != nil {
		logger.Err(err, "Crawl aborted after %d items", len(res.Items))
		report.Error = err.Error()
		return report
	}

	if o.raw != nil && len(res.Items) > 0 {
		if err := o.raw.WriteRaw(name, res.Items); err != nil {
			logger.Warn("Raw export failed: %v", err)
		}
	}

	items := o.cleaner.Clean(res.Items)
	report.Items = len(items)
	if len(items) == 0 {
		report.NoProducts = true
		logger.Warn("No products found (%d pages, %d layout mismatches, %d captchas)",
			res.Stats.Pages, res.Stats.LayoutMismatches, res.Stats.Captchas)
		o.maybeBlock(name, res.Stats, logger)
		return report
	}

	report.Result = o.writer.Ingest(ctx, vendor.ID, items)
	logger.Info("Vendor done: %d succeeded, %d failed in %s",
		report.Result.Succeeded, report.Result.Failed, time.Since(start).Round(time.Millisecond))
	return report
}

// maybeBlock cools a vendor down when its only answers were CAPTCHAs.
func (o *Orchestrator) maybeBlock(name string, stats models.CrawlStats, logger *utils.Logger) {
	if o.blocklist == nil || o.cfg.BlockTime <= 0 || stats.Captchas == 0 {
		return
	}
	if err := o.blocklist.Block(name, o.cfg.BlockTime); err != nil {
		logger.Warn("Could not block vendor: %v", err)
		return
	}
	logger.Warn("Vendor blocked for %s after %d captchas", o.cfg.BlockTime, stats.Captchas)
}

func (o *Orchestrator) publish(ctx context.Context, report models.VendorReport, logger *utils.Logger) {
	if o.reports == nil {
		return
	}
	// The report of a cancelled vendor is still worth delivering.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.reports.Publish(ctx, report); err != nil {
		logger.Warn("Report publish failed: %v", err)
	}
}
