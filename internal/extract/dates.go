package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// dateMetaSelectors are tried in order; the first non-empty content
// attribute wins.
var dateMetaSelectors = []string{
	"meta[property='article:published_time']",
	"meta[property='og:published_time']",
	"meta[name='date']",
	"meta[name='pubdate']",
	"meta[itemprop='datePublished']",
}

// dateLayouts are tried in order against the candidate string. The
// input is truncated to 30 characters first so trailing fragments
// (timezone names, extra text) do not defeat the simpler layouts.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func extractPublishedAt(gq *goquery.Document) *time.Time {
	for _, sel := range dateMetaSelectors {
		if v := strings.TrimSpace(gq.Find(sel).AttrOr("content", "")); v != "" {
			if t := parseDate(v); t != nil {
				return t
			}
		}
	}
	if v := strings.TrimSpace(gq.Find("time[datetime]").First().AttrOr("datetime", "")); v != "" {
		return parseDate(v)
	}
	return nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) > 30 {
		s = s[:30]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
