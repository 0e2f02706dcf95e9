// Package extract turns raw HTML into a structured document: metadata,
// boilerplate-stripped text, markdown, and outbound links. It performs
// no I/O.
package extract

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Document is the structured output of content extraction. Text and
// Markdown may be empty when the page has no extractable main content;
// such a document is still valid, it just cannot be indexed.
type Document struct {
	Title       string
	Description string
	Author      string
	PublishedAt *time.Time
	Language    string
	Text        string
	Markdown    string
	Links       []string
	WordCount   int
}

// maxLinkLen guards against pathological hrefs blowing up the frontier.
const maxLinkLen = 2000

var skipLinkPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// Extract parses html fetched from pageURL and returns a best-effort
// document. Every field is optional; a failure in one stage does not
// abort the others.
func Extract(pageURL string, htmlBytes []byte) *Document {
	doc := &Document{}

	base, _ := url.Parse(pageURL)

	text, contentNode := mainContent(pageURL, htmlBytes)
	doc.Text = text
	doc.WordCount = len(strings.Fields(text))

	if contentNode != nil && base != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, contentNode); err == nil {
			converter := htmlmd.NewConverter(base.Hostname(), true, nil)
			if md, err := converter.ConvertString(buf.String()); err == nil {
				doc.Markdown = strings.TrimSpace(md)
			}
		}
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return doc
	}

	doc.Title = extractTitle(gq)
	doc.Description = extractDescription(gq)
	doc.Author = extractAuthor(gq)
	doc.PublishedAt = extractPublishedAt(gq)
	doc.Language = extractLanguage(gq)
	doc.Links = extractLinks(gq)

	return doc
}

// mainContent runs the boilerplate stripper. Precision is favored over
// recall so navigation and footers do not leak into the index.
func mainContent(pageURL string, htmlBytes []byte) (string, *html.Node) {
	opts := trafilatura.Options{
		Focus:           trafilatura.FavorPrecision,
		ExcludeComments: true,
		ExcludeTables:   false,
		EnableFallback:  true,
	}
	if u, err := url.Parse(pageURL); err == nil {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(bytes.NewReader(htmlBytes), opts)
	if err != nil || result == nil {
		return "", nil
	}
	return strings.TrimSpace(result.ContentText), result.ContentNode
}

func extractTitle(gq *goquery.Document) string {
	if v := strings.TrimSpace(gq.Find("meta[property='og:title']").AttrOr("content", "")); v != "" {
		return v
	}
	if v := strings.TrimSpace(gq.Find("title").First().Text()); v != "" {
		return v
	}
	return strings.TrimSpace(gq.Find("h1").First().Text())
}

func extractDescription(gq *goquery.Document) string {
	if v := strings.TrimSpace(gq.Find("meta[property='og:description']").AttrOr("content", "")); v != "" {
		return v
	}
	return strings.TrimSpace(gq.Find("meta[name='description']").AttrOr("content", ""))
}

func extractAuthor(gq *goquery.Document) string {
	if v := strings.TrimSpace(gq.Find("meta[name='author']").AttrOr("content", "")); v != "" {
		return v
	}
	if v := strings.TrimSpace(gq.Find("meta[property='article:author']").AttrOr("content", "")); v != "" {
		return v
	}

	// Schema.org markup, preferring a nested itemprop=name over the
	// author element's own text.
	sel := gq.Find("[itemprop='author']").First()
	if sel.Length() == 0 {
		return ""
	}
	if name := sel.Find("[itemprop='name']").First(); name.Length() > 0 {
		return strings.TrimSpace(name.Text())
	}
	return strings.TrimSpace(sel.Text())
}

func extractLanguage(gq *goquery.Document) string {
	if lang, ok := gq.Find("html").First().Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		return langCode(lang)
	}
	if v := gq.Find("meta[http-equiv='content-language']").AttrOr("content", ""); strings.TrimSpace(v) != "" {
		return langCode(v)
	}
	return ""
}

// langCode reduces "en-US" style tags to their primary subtag.
func langCode(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// extractLinks collects raw hrefs. They are intentionally not resolved
// here; the crawler resolves them against the page URL.
func extractLinks(gq *goquery.Document) []string {
	var links []string
	gq.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || len(href) > maxLinkLen {
			return
		}
		lower := strings.ToLower(href)
		for _, p := range skipLinkPrefixes {
			if strings.HasPrefix(lower, p) {
				return
			}
		}
		links = append(links, href)
	})
	return links
}
