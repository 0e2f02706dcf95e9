package crawler

import (
	"net/url"
	"strings"
)

// Normalize canonicalizes a URL for visited-set bookkeeping: scheme and
// host are lowercased, trailing slashes are stripped from the path, the
// query string is kept verbatim and the fragment is dropped.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String(), nil
}

// inScope reports whether a resolved link belongs to the crawl: http(s)
// only, and on the seed's netloc (or a subdomain of it when allowed).
// The full host:port is compared, so a different port is out of scope.
func inScope(u *url.URL, baseHost string, includeSubdomains bool) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Host)
	if host == "" {
		return false
	}
	if host == baseHost {
		return true
	}
	return includeSubdomains && strings.HasSuffix(host, "."+baseHost)
}
