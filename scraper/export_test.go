package scraper

import (
	"time"

	"catalog-ingest/models"
	"catalog-ingest/utils"
)

// NewTestNavigator builds a Navigator with no pacing, no retries and no OCR.
func NewTestNavigator(page Page, readySelector string) *Navigator {
	logger := utils.NewNopLogger()
	return &Navigator{
		page:          page,
		evasion:       NewEvasion(nil, time.Second, 0, logger),
		limiter:       utils.NewLimiter(0),
		retry:         &utils.RetryConfig{MaxAttempts: 1, Logger: logger},
		vendor:        "test",
		readySelector: readySelector,
		readyTimeout:  time.Second,
		stats:         &models.CrawlStats{},
		logger:        logger,
	}
}
