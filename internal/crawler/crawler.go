// Package crawler fetches pages through a headless browser so that
// JS-rendered content is visible to extraction, and walks sites
// breadth-first within a domain scope.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sonar/internal/extract"
)

// Result is the outcome of fetching one URL. A failed fetch carries its
// reason in Err instead of aborting the batch it belongs to; Status is
// the HTTP status of the document response, left 0 on timeouts and
// navigation errors.
type Result struct {
	URL       string
	Status    int
	Doc       *extract.Document
	Err       string
	FetchedAt time.Time
}

// OK reports whether the fetch produced a usable document.
func (r *Result) OK() bool { return r.Err == "" && r.Doc != nil }

// Config holds browser and concurrency settings for the crawler.
type Config struct {
	// MaxConcurrent caps in-flight page fetches across all callers.
	MaxConcurrent int
	// Timeout bounds a single fetch end to end.
	Timeout time.Duration
	// UserAgent overrides the browser user agent when set.
	UserAgent string
	// BrowserURL points at an existing DevTools endpoint. When empty a
	// local headless browser is launched instead.
	BrowserURL string
}

// Crawler drives a shared headless browser. It is safe for concurrent
// use; fetches are gated by a semaphore sized to MaxConcurrent.
type Crawler struct {
	browser   *rod.Browser
	cleanup   func()
	sem       chan struct{}
	timeout   time.Duration
	userAgent string

	fetch func(ctx context.Context, rawURL string) *Result
}

// New launches (or connects to) a browser and returns a ready crawler.
func New(cfg Config) (*Crawler, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	controlURL := cfg.BrowserURL
	cleanup := func() {}
	if controlURL == "" {
		l := launcher.New().
			Headless(true).
			Set("no-sandbox").
			Set("disable-gpu").
			Set("disable-dev-shm-usage")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		cleanup = l.Cleanup
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	c := &Crawler{
		browser:   browser,
		cleanup:   cleanup,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
	c.fetch = c.doFetch
	return c, nil
}

// Close disconnects from the browser and removes any launcher state.
func (c *Crawler) Close() error {
	err := c.browser.Close()
	c.cleanup()
	return err
}

// FetchOne fetches a single URL, renders it, and extracts its content.
// Failures are reported inside the result so callers can keep going.
func (c *Crawler) FetchOne(ctx context.Context, rawURL string) *Result {
	return c.fetch(ctx, rawURL)
}

// FetchMany fetches all URLs concurrently, bounded by the configured
// concurrency, and returns results in input order.
func (c *Crawler) FetchMany(ctx context.Context, urls []string) []*Result {
	results := make([]*Result, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = c.fetch(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

// statusJS reads the HTTP status of the document response from the
// performance timeline. It needs no CDP event listeners, so it cannot
// race the navigation that produced it.
const statusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) {
			return entries[0].responseStatus || 0;
		}
	} catch (e) {}
	return 0;
}`

func (c *Crawler) doFetch(ctx context.Context, rawURL string) *Result {
	res := &Result{URL: rawURL, FetchedAt: time.Now().UTC()}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		res.Err = fetchErrString(ctx.Err())
		return res
	}
	defer func() { <-c.sem }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	page, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		res.Err = fetchErrString(err)
		return res
	}
	// Close through the original page so cleanup still works after the
	// fetch context has expired.
	defer func() { _ = page.Close() }()

	p := page.Context(ctx)

	if c.userAgent != "" {
		_ = p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.userAgent})
	}
	_ = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1280,
		Height:            720,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})

	// The idle waiter must be armed before navigation or the lifecycle
	// event can fire before anyone listens for it.
	waitIdle := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := p.Navigate(rawURL); err != nil {
		res.Err = fetchErrString(err)
		return res
	}
	// Give the page until the fetch deadline to go network-idle, then
	// make sure the document itself finished loading before snapshotting.
	waitIdle()
	if err := p.WaitLoad(); err != nil {
		res.Err = fetchErrString(err)
		return res
	}

	if obj, err := p.Eval(statusJS); err == nil {
		res.Status = obj.Value.Int()
	}
	if res.Status == 0 {
		// Old browsers omit responseStatus; the page did load.
		res.Status = 200
	}
	if res.Status >= 400 {
		res.Err = fmt.Sprintf("http status %d", res.Status)
		return res
	}

	html, err := p.HTML()
	if err != nil {
		res.Err = fetchErrString(err)
		return res
	}

	res.Doc = extract.Extract(rawURL, []byte(html))
	return res
}

// fetchErrString maps context errors onto the short reasons stored on
// pages and surfaced to clients. A deadline is a "timeout"; an outside
// cancellation, such as a shutdown, is reported as "canceled" so it is
// not mistaken for a slow site.
func fetchErrString(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case strings.Contains(err.Error(), "timeout"):
		return "timeout"
	default:
		return err.Error()
	}
}
