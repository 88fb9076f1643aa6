package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"catalog-ingest/config"
	"catalog-ingest/models"
	"catalog-ingest/scraper"
	"catalog-ingest/scraper/sites"
	"catalog-ingest/services"
	"catalog-ingest/storage"
	"catalog-ingest/utils"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Crawl vendors and upsert their products",
	Long: "Runs one ingestion pass over the vendors defined in VENDORS_FILE. Each vendor is crawled " +
		"with its own browser tab and its items are written to the catalog.",
	RunE: runIngest,
}

var (
	ingestVendors     []string
	ingestDryRun      bool
	ingestConcurrency int
)

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestVendors, "vendor", "v", nil, "Only ingest these vendors (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Write to an in-memory catalog instead of PostgreSQL")
	ingestCmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "c", 0, "Vendors crawled at once (overrides MAX_CONCURRENCY)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	logger := utils.NewLogger()
	cfg := config.Load()
	if ingestConcurrency > 0 {
		cfg.MaxConcurrency = ingestConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Catalog ingestion starting ===")
	logger.Info("Config: vendors file %s | concurrency %d | rate %dms | max pages %d | dry run %v",
		cfg.VendorsFile, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.MaxPages, ingestDryRun)

	defined, err := sites.Load(cfg.VendorsFile)
	if err != nil {
		return err
	}
	selected, err := sites.Filter(defined, ingestVendors)
	if err != nil {
		return err
	}
	adapters := make([]scraper.SiteAdapter, 0, len(selected))
	for _, a := range selected {
		adapters = append(adapters, a)
	}

	store, closeStore, err := openCatalog(ctx, cfg, adapters, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var opts []services.Option
	var locker storage.KeyLocker = storage.NewLocalLocker()

	if cfg.RedisAddr != "" {
		client, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process locks and no report stream: %v", err)
		} else {
			defer client.Close()
			locker = storage.NewRedisLocker(client, "catalog:lock", 30*time.Second)
			opts = append(opts, services.WithReportPublisher(
				storage.NewRedisReportPublisher(client, cfg.RedisStream, cfg.RedisStreamMaxLen)))
			logger.Info("Publishing vendor reports to redis stream %s", cfg.RedisStream)
		}
	}

	if cfg.MemcacheAddr != "" {
		opts = append(opts, services.WithBlocklist(storage.NewMemcacheBlocklist(cfg.MemcacheAddr, "catalog_block")))
	}

	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			return fmt.Errorf("failed to create CSV writer: %w", err)
		}
		defer csvWriter.Close()
		opts = append(opts, services.WithRawWriter(csvWriter))
	}

	browser, err := scraper.NewChrome(scraper.ChromeOptions{Bin: cfg.ChromeBin, Headless: cfg.Headless}, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer browser.Close()

	var ocr scraper.OCR
	if cfg.OCRServiceURL != "" {
		httpOCR := scraper.NewHTTPOCR(cfg.OCRServiceURL)
		if err := httpOCR.Health(ctx); err != nil {
			logger.Warn("OCR service at %s is not healthy, CAPTCHAs will likely stay unsolved: %v", cfg.OCRServiceURL, err)
		}
		ocr = httpOCR
	}

	driver := scraper.NewDriver(browser, scraper.NewEvasion(ocr, cfg.NavTimeout, cfg.CaptchaSettle, logger),
		scraper.DriverConfig{
			PageRetries:  cfg.PageRetries,
			RetryDelay:   2 * time.Second,
			MaxPages:     cfg.MaxPages,
			ReadyTimeout: cfg.ReadyTimeout,
			PageInterval: cfg.PageInterval(),
		}, logger)

	orch := services.NewOrchestrator(driver, services.NewCatalogWriter(store, locker, logger),
		services.OrchestratorConfig{
			MaxConcurrency: cfg.MaxConcurrency,
			VendorStagger:  cfg.VendorStagger,
			BlockTime:      cfg.BlockTime,
		}, logger, opts...)

	reports, runErr := orch.Run(ctx, adapters)

	insightSvc := services.NewInsightService(logger)
	summary := insightSvc.Generate(reports)
	insightSvc.Print(summary)

	if runErr != nil {
		return fmt.Errorf("ingestion interrupted: %w", runErr)
	}
	if summary.Vendors > 0 && summary.VendorsFailed == summary.Vendors {
		return fmt.Errorf("all %d vendors failed", summary.Vendors)
	}
	return nil
}

// openCatalog connects to PostgreSQL, or builds an in-memory catalog holding
// the selected vendors for a dry run.
func openCatalog(ctx context.Context, cfg *config.Config, adapters []scraper.SiteAdapter, logger *utils.Logger) (storage.CatalogStore, func(), error) {
	if ingestDryRun {
		mem := storage.NewMemoryStore()
		for _, a := range adapters {
			if _, err := mem.CreateVendor(ctx, models.Vendor{Name: a.Vendor()}); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("Dry run: writing to an in-memory catalog")
		return mem, func() {}, nil
	}

	pg, err := storage.NewPostgresStore(ctx, cfg.DSN())
	if err != nil {
		logger.Error("Make sure PostgreSQL is running: docker compose up -d")
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return pg, func() { pg.Close() }, nil
}
