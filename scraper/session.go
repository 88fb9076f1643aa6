package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"catalog-ingest/models"
	"catalog-ingest/utils"
)

// Session is the per-vendor crawl state: one page, one identity and the
// titles already collected in this run. It is never shared between runs.
type Session struct {
	page     Page
	identity Identity
	seen     *utils.SeenSet
	nav      *Navigator
}

// Identity returns the fingerprint the session presents.
func (s *Session) Identity() Identity { return s.identity }

// Close releases the page.
func (s *Session) Close() error {
	return s.page.Close()
}

// Navigator brings pages up on a session's tab. Every load or click is paced
// by the session limiter, retried on failure, followed by a CAPTCHA attempt
// and a bounded wait for the adapter's ready selector.
type Navigator struct {
	page          Page
	evasion       *Evasion
	limiter       *rate.Limiter
	retry         *utils.RetryConfig
	vendor        string
	readySelector string
	readyTimeout  time.Duration
	captcha       CaptchaConfig
	stats         *models.CrawlStats
	logger        *utils.Logger

	ready bool
}

// Page returns the tab the navigator drives.
func (n *Navigator) Page() Page { return n.page }

// Ready reports whether the last load or click ended with the ready selector
// present.
func (n *Navigator) Ready() bool { return n.ready }

// Load navigates to url. It returns an error only when ctx is done; a page
// that cannot be reached or never becomes ready yields false.
func (n *Navigator) Load(ctx context.Context, url string) (bool, error) {
	n.ready = false
	if err := n.limiter.Wait(ctx); err != nil {
		return false, err
	}

	err := n.retry.Do(ctx, "goto "+url, func() error {
		if err := n.page.Goto(ctx, url); err != nil {
			return utils.NewNavigation(n.vendor, "goto "+url, err)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		n.logger.Warn("[navigator] Giving up on %s: %v", url, err)
		return false, nil
	}
	n.logger.Debug("[navigator] Loaded %s", url)
	return n.settle(ctx)
}

// Click activates sel on the current page and waits for it to settle.
func (n *Navigator) Click(ctx context.Context, sel string) (bool, error) {
	n.ready = false
	if err := n.limiter.Wait(ctx); err != nil {
		return false, err
	}

	err := n.retry.Do(ctx, "click "+sel, func() error {
		if err := n.page.Click(ctx, sel); err != nil {
			return utils.NewError(utils.ErrorTypeSelector, n.vendor, "click "+sel, err)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		n.logger.Warn("[navigator] Click on %q failed: %v", sel, err)
		return false, nil
	}
	return n.settle(ctx)
}

func (n *Navigator) settle(ctx context.Context) (bool, error) {
	if n.evasion.DetectCaptcha(ctx, n.page, n.captcha) {
		n.stats.Captchas++
		if !n.evasion.TrySolveCaptcha(ctx, n.page, n.captcha) {
			n.logger.Warn("[navigator] Captcha could not be attempted")
		}
	}

	if err := n.page.WaitForSelector(ctx, n.readySelector, n.readyTimeout, true); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		n.logger.Warn("[navigator] Ready selector %q did not appear: %v", n.readySelector, err)
		return false, nil
	}
	n.ready = true
	return true, nil
}
