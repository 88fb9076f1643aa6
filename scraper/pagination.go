package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalog-ingest/utils"
)

// State is the pagination state of one entry URL.
type State int

const (
	StateStart State = iota
	StateHasPage
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateHasPage:
		return "has_page"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Pagination strategy names used in adapter definitions.
const (
	StrategyCounter        = "counter"
	StrategyLoadMore       = "load_more"
	StrategyInfiniteScroll = "infinite_scroll"
	StrategyNextLink       = "next_link"
)

// DefaultMaxPages bounds every entry URL regardless of strategy.
const DefaultMaxPages = 500

// maxFailedPages is how many extraction failures in a row a counter walk
// tolerates before giving up on the entry.
const maxFailedPages = 3

// PaginationConfig selects and parameterises a strategy for one vendor.
type PaginationConfig struct {
	Strategy string `mapstructure:"strategy" validate:"required,oneof=counter load_more infinite_scroll next_link"`

	// counter
	PageParam          string `mapstructure:"page_param"`
	StartPage          int    `mapstructure:"start_page" validate:"gte=0"`
	EmptyPageTolerance int    `mapstructure:"empty_page_tolerance" validate:"gte=0"`

	// load_more
	LoadMoreSelector string        `mapstructure:"load_more_selector" validate:"required_if=Strategy load_more"`
	ItemSelector     string        `mapstructure:"item_selector"`
	WaitTimeout      time.Duration `mapstructure:"wait_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`

	// next_link
	NextSelector string `mapstructure:"next_selector" validate:"required_if=Strategy next_link"`

	// infinite_scroll
	ScrollStep  int           `mapstructure:"scroll_step" validate:"gte=0"`
	ScrollPause time.Duration `mapstructure:"scroll_pause"`
	MaxScrolls  int           `mapstructure:"max_scrolls" validate:"gte=0"`
}

func (c PaginationConfig) withDefaults() PaginationConfig {
	if c.Strategy == "" {
		c.Strategy = StrategyCounter
	}
	if c.PageParam == "" {
		c.PageParam = "page"
	}
	if c.StartPage == 0 {
		c.StartPage = 1
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = 400
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 500 * time.Millisecond
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = 200
	}
	return c
}

// PageResult is what the driver learned from extracting the current page.
type PageResult struct {
	// Items is the number of listings extracted before any filtering.
	Items int
	// Failed is set when extraction kept failing and the page was skipped.
	Failed bool
}

// Strategy moves a page through the listing pages of one entry URL. Both
// methods return an error only when ctx is done.
type Strategy interface {
	// First loads the first page and reports whether it became ready.
	First(ctx context.Context, nav *Navigator, entryURL string) (bool, error)
	// Next reports whether another page follows last and, if so, brings it up.
	Next(ctx context.Context, nav *Navigator, last PageResult) (bool, error)
}

// NewStrategy builds the strategy named by cfg.
func NewStrategy(cfg PaginationConfig) (Strategy, error) {
	cfg = cfg.withDefaults()
	switch cfg.Strategy {
	case StrategyCounter:
		return &counterStrategy{cfg: cfg}, nil
	case StrategyLoadMore:
		return &loadMoreStrategy{cfg: cfg}, nil
	case StrategyInfiniteScroll:
		return &infiniteScrollStrategy{cfg: cfg}, nil
	case StrategyNextLink:
		return &nextLinkStrategy{cfg: cfg}, nil
	default:
		return nil, utils.NewConfiguration(fmt.Sprintf("unknown pagination strategy %q", cfg.Strategy), nil)
	}
}

// Controller walks one entry URL from Start through HasPage to Exhausted.
type Controller struct {
	strategy Strategy
	nav      *Navigator
	maxPages int
	logger   *utils.Logger

	state State
	pages int
}

// NewController creates a controller for one entry URL.
func NewController(cfg PaginationConfig, nav *Navigator, maxPages int) (*Controller, error) {
	strategy, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Controller{
		strategy: strategy,
		nav:      nav,
		maxPages: maxPages,
		logger:   nav.logger,
		state:    StateStart,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Pages returns how many pages have been brought up so far.
func (c *Controller) Pages() int { return c.pages }

// Start loads the first page. It reports false when the page never became
// ready, in which case the controller is already Exhausted.
func (c *Controller) Start(ctx context.Context, entryURL string) (bool, error) {
	if c.state != StateStart {
		return false, fmt.Errorf("pagination already started")
	}
	ready, err := c.strategy.First(ctx, c.nav, entryURL)
	if err != nil {
		c.state = StateExhausted
		return false, err
	}
	if !ready {
		c.state = StateExhausted
		return false, nil
	}
	c.state = StateHasPage
	c.pages = 1
	return true, nil
}

// Advance decides, from the page just extracted, whether to move on.
func (c *Controller) Advance(ctx context.Context, last PageResult) error {
	if c.state != StateHasPage {
		return nil
	}
	if c.pages >= c.maxPages {
		c.logger.Warn("[pagination] Reached the %d page limit, stopping", c.maxPages)
		c.state = StateExhausted
		return nil
	}

	more, err := c.strategy.Next(ctx, c.nav, last)
	if err != nil {
		c.state = StateExhausted
		return err
	}
	if !more {
		c.state = StateExhausted
		return nil
	}
	if !c.nav.Ready() {
		c.logger.Warn("[pagination] Page %d never became ready, stopping", c.pages+1)
		c.state = StateExhausted
		return nil
	}
	c.pages++
	return nil
}

// counterStrategy requests page N, N+1, ... until pages come back empty.
type counterStrategy struct {
	cfg         PaginationConfig
	entryURL    string
	page        int
	emptyStreak int
	failStreak  int
}

func (s *counterStrategy) First(ctx context.Context, nav *Navigator, entryURL string) (bool, error) {
	s.entryURL = entryURL
	s.page = s.cfg.StartPage
	return nav.Load(ctx, pageURL(entryURL, s.cfg.PageParam, s.page))
}

func (s *counterStrategy) Next(ctx context.Context, nav *Navigator, last PageResult) (bool, error) {
	switch {
	case last.Failed:
		s.failStreak++
		if s.failStreak >= maxFailedPages {
			return false, nil
		}
	case last.Items == 0:
		s.failStreak = 0
		s.emptyStreak++
		if s.emptyStreak > s.cfg.EmptyPageTolerance {
			return false, nil
		}
	default:
		s.failStreak = 0
		s.emptyStreak = 0
	}

	s.page++
	if _, err := nav.Load(ctx, pageURL(s.entryURL, s.cfg.PageParam, s.page)); err != nil {
		return false, err
	}
	return true, nil
}

// pageURL fills a {page} placeholder, or sets the page query parameter.
func pageURL(entryURL, param string, page int) string {
	n := strconv.Itoa(page)
	if strings.Contains(entryURL, "{page}") {
		return strings.ReplaceAll(entryURL, "{page}", n)
	}
	u, err := url.Parse(entryURL)
	if err != nil {
		return entryURL
	}
	q := u.Query()
	q.Set(param, n)
	u.RawQuery = q.Encode()
	return u.String()
}

// loadMoreStrategy keeps clicking a "load more" control on a single page.
type loadMoreStrategy struct {
	cfg PaginationConfig
}

func (s *loadMoreStrategy) First(ctx context.Context, nav *Navigator, entryURL string) (bool, error) {
	return nav.Load(ctx, entryURL)
}

func (s *loadMoreStrategy) Next(ctx context.Context, nav *Navigator, _ PageResult) (bool, error) {
	present, err := exists(ctx, nav.Page(), s.cfg.LoadMoreSelector)
	if err != nil || !present {
		return false, ctx.Err()
	}

	itemSel := s.cfg.ItemSelector
	if itemSel == "" {
		itemSel = nav.readySelector
	}
	before, err := countNodes(ctx, nav.Page(), itemSel)
	if err != nil {
		return false, ctx.Err()
	}

	if _, err := nav.Click(ctx, s.cfg.LoadMoreSelector); err != nil {
		return false, err
	}

	deadline := time.Now().Add(s.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		if n, err := countNodes(ctx, nav.Page(), itemSel); err == nil && n > before {
			return true, nil
		}
		if err := utils.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return false, err
		}
	}
	nav.logger.Debug("[pagination] Item count stayed at %d after load more", before)
	return false, nil
}

// infiniteScrollStrategy scrolls the first page until it stops growing and
// then treats it as the only page.
type infiniteScrollStrategy struct {
	cfg PaginationConfig
}

func (s *infiniteScrollStrategy) First(ctx context.Context, nav *Navigator, entryURL string) (bool, error) {
	ready, err := nav.Load(ctx, entryURL)
	if err != nil || !ready {
		return ready, err
	}
	if err := s.scrollToEnd(ctx, nav); err != nil {
		return false, err
	}
	return true, nil
}

func (s *infiniteScrollStrategy) Next(context.Context, *Navigator, PageResult) (bool, error) {
	return false, nil
}

// scrollToEnd scrolls in fixed steps. Once the bottom is reached it stops
// unless the document grew since the previous check.
func (s *infiniteScrollStrategy) scrollToEnd(ctx context.Context, nav *Navigator) error {
	page := nav.Page()

	var height int
	if err := page.Evaluate(ctx, ScrollHeightExpr, &height); err != nil {
		nav.logger.Debug("[pagination] Could not read scroll height: %v", err)
		return ctx.Err()
	}

	scrolled := 0
	for i := 0; i < s.cfg.MaxScrolls; i++ {
		if err := page.Evaluate(ctx, ScrollByExpr(s.cfg.ScrollStep), nil); err != nil {
			return ctx.Err()
		}
		scrolled += s.cfg.ScrollStep
		if err := utils.Sleep(ctx, s.cfg.ScrollPause); err != nil {
			return err
		}
		if scrolled < height {
			continue
		}

		var grown int
		if err := page.Evaluate(ctx, ScrollHeightExpr, &grown); err != nil {
			return ctx.Err()
		}
		if grown <= height {
			return nil
		}
		height = grown
	}
	nav.logger.Warn("[pagination] Stopped scrolling after %d steps", s.cfg.MaxScrolls)
	return nil
}

// nextLinkStrategy follows a "next" control for as long as one is present.
type nextLinkStrategy struct {
	cfg     PaginationConfig
	visited map[string]struct{}
}

func (s *nextLinkStrategy) First(ctx context.Context, nav *Navigator, entryURL string) (bool, error) {
	s.visited = map[string]struct{}{entryURL: {}}
	return nav.Load(ctx, entryURL)
}

func (s *nextLinkStrategy) Next(ctx context.Context, nav *Navigator, _ PageResult) (bool, error) {
	page := nav.Page()

	present, err := exists(ctx, page, s.cfg.NextSelector)
	if err != nil || !present {
		return false, ctx.Err()
	}

	href, _, err := attr(ctx, page, s.cfg.NextSelector, "href")
	if err != nil {
		return false, ctx.Err()
	}
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		if _, err := nav.Click(ctx, s.cfg.NextSelector); err != nil {
			return false, err
		}
		return true, nil
	}

	next := href
	if current, err := page.URL(ctx); err == nil {
		next = resolveURL(current, href)
	}
	if _, seen := s.visited[next]; seen {
		nav.logger.Debug("[pagination] Next link points back to %s, stopping", next)
		return false, nil
	}
	s.visited[next] = struct{}{}

	if _, err := nav.Load(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
