package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SiteOptions bounds a breadth-first site crawl.
type SiteOptions struct {
	SeedURL           string
	MaxPages          int
	IncludeSubdomains bool
}

// Progress is called after each fetched page with the number of pages
// fetched so far, the page budget, and the result that just landed.
type Progress func(completed, total int, last *Result)

// CrawlSite walks a site breadth-first from the seed, fetching at most
// MaxPages URLs on the seed's host. Every attempted fetch occupies one
// slot in the returned results, including failed ones; links found on
// each page are resolved against that page's URL and queued when in
// scope. URLs are normalized for the visited set only; the frontier
// keeps the original form, and that is what gets fetched.
func (c *Crawler) CrawlSite(ctx context.Context, opts SiteOptions, onProgress Progress) ([]*Result, error) {
	seed, err := url.Parse(strings.TrimSpace(opts.SeedURL))
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return nil, fmt.Errorf("unsupported seed url %q", opts.SeedURL)
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	baseHost := strings.ToLower(seed.Host)
	seedNorm, err := Normalize(opts.SeedURL)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{seedNorm: true}
	frontier := []string{strings.TrimSpace(opts.SeedURL)}
	results := make([]*Result, 0, maxPages)

	for len(frontier) > 0 && len(results) < maxPages {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		n := len(frontier)
		if limit := c.batchSize(); n > limit {
			n = limit
		}
		if left := maxPages - len(results); n > left {
			n = left
		}
		batch := frontier[:n]
		frontier = frontier[n:]

		for _, r := range c.FetchMany(ctx, batch) {
			results = append(results, r)
			if onProgress != nil {
				onProgress(len(results), maxPages, r)
			}
			if r.Doc == nil {
				continue
			}

			base, err := url.Parse(r.URL)
			if err != nil {
				continue
			}
			for _, raw := range r.Doc.Links {
				ref, err := url.Parse(strings.TrimSpace(raw))
				if err != nil {
					continue
				}
				abs := base.ResolveReference(ref)
				if !inScope(abs, baseHost, opts.IncludeSubdomains) {
					continue
				}
				norm, err := Normalize(abs.String())
				if err != nil || visited[norm] {
					continue
				}
				visited[norm] = true
				frontier = append(frontier, abs.String())
			}
		}
	}

	return results, nil
}

func (c *Crawler) batchSize() int {
	if n := cap(c.sem); n > 0 {
		return n
	}
	return 1
}
