package scraper

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"catalog-ingest/utils"
)

var userAgents = []string{
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

var viewports = [][2]int64{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
	{1280, 800},
}

// CaptchaConfig locates an image CAPTCHA challenge on a vendor page.
type CaptchaConfig struct {
	ImageSelector  string `mapstructure:"image_selector"`
	InputSelector  string `mapstructure:"input_selector"`
	SubmitSelector string `mapstructure:"submit_selector"`
}

func (c CaptchaConfig) withDefaults() CaptchaConfig {
	if c.ImageSelector == "" {
		c.ImageSelector = `img[src*="captcha"], img[id*="captcha"]`
	}
	if c.InputSelector == "" {
		c.InputSelector = `input[name*="captcha"], input[id*="captcha"]`
	}
	return c
}

// Evasion randomises a session's browser identity and makes best-effort
// attempts at simple image CAPTCHAs.
type Evasion struct {
	ocr        OCR
	navTimeout time.Duration
	settle     time.Duration
	logger     *utils.Logger
}

// NewEvasion creates an Evasion. ocr may be nil, in which case challenges are
// detected but never answered.
func NewEvasion(ocr OCR, navTimeout, settle time.Duration, logger *utils.Logger) *Evasion {
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	return &Evasion{
		ocr:        ocr,
		navTimeout: navTimeout,
		settle:     settle,
		logger:     logger.ForComponent("antibot"),
	}
}

// PrepareSession picks a random identity and applies it to page.
func (e *Evasion) PrepareSession(ctx context.Context, page Page) (Identity, error) {
	vp := viewports[rand.IntN(len(viewports))]
	id := Identity{
		UserAgent:  userAgents[rand.IntN(len(userAgents))],
		Width:      vp[0],
		Height:     vp[1],
		NavTimeout: e.navTimeout,
	}
	if err := page.Configure(ctx, id); err != nil {
		return Identity{}, err
	}
	e.logger.Debug("[antibot] Session identity %dx%d %s", id.Width, id.Height, id.UserAgent)
	return id, nil
}

// DetectCaptcha reports whether a challenge image is on the page.
func (e *Evasion) DetectCaptcha(ctx context.Context, page Page, cfg CaptchaConfig) bool {
	cfg = cfg.withDefaults()
	present, err := exists(ctx, page, cfg.ImageSelector)
	if err != nil {
		e.logger.Debug("[antibot] Could not inspect page for captcha: %v", err)
		return false
	}
	return present
}

// TrySolveCaptcha answers a challenge if one is shown. It returns true when
// there is nothing to solve or an answer was submitted, and false when the
// attempt could not be made. A true result does not mean the answer was right.
func (e *Evasion) TrySolveCaptcha(ctx context.Context, page Page, cfg CaptchaConfig) bool {
	cfg = cfg.withDefaults()
	if !e.DetectCaptcha(ctx, page, cfg) {
		return true
	}
	if e.ocr == nil {
		e.logger.Warn("[antibot] Captcha shown but no OCR service is configured")
		return false
	}

	img, err := page.Screenshot(ctx, cfg.ImageSelector)
	if err != nil {
		e.logger.Warn("[antibot] Captcha screenshot failed: %v", err)
		return false
	}

	text, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		e.logger.Warn("[antibot] Captcha OCR failed: %v", err)
		return false
	}
	guess := alphanumeric(text)
	if guess == "" {
		e.logger.Warn("[antibot] OCR returned no usable characters")
		return false
	}

	if err := page.SendKeys(ctx, cfg.InputSelector, guess); err != nil {
		e.logger.Warn("[antibot] Could not type captcha answer: %v", err)
		return false
	}
	if cfg.SubmitSelector != "" {
		if err := page.Click(ctx, cfg.SubmitSelector); err != nil {
			e.logger.Warn("[antibot] Could not submit captcha: %v", err)
			return false
		}
	} else if err := page.SendKeys(ctx, cfg.InputSelector, "\r"); err != nil {
		e.logger.Warn("[antibot] Could not submit captcha: %v", err)
		return false
	}

	e.logger.Info("[antibot] Submitted captcha answer %q", guess)
	_ = utils.Sleep(ctx, e.settle)
	return true
}

func alphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}
