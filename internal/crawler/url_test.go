package crawler

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/Path/", "https://example.com/Path"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com", "https://example.com"},
		{"https://example.com/a?b=1&a=2", "https://example.com/a?b=1&a=2"},
		{"https://example.com/a#section", "https://example.com/a"},
		{"http://example.com:8080/x/", "http://example.com:8080/x"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"https://example.com/a//", "https://example.com/a"},
	}

	for _, tc := range cases {
		got, err := Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once, err := Normalize("HTTPS://Example.com/Page/?q=1#frag")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestInScope(t *testing.T) {
	cases := []struct {
		url        string
		base       string
		subdomains bool
		want       bool
	}{
		{"https://example.com/a", "example.com", false, true},
		{"http://example.com/a", "example.com", false, true},
		{"https://EXAMPLE.com/a", "example.com", false, true},
		{"https://docs.example.com/a", "example.com", false, false},
		{"https://docs.example.com/a", "example.com", true, true},
		{"https://deep.docs.example.com/a", "example.com", true, true},
		{"https://notexample.com/a", "example.com", true, false},
		{"https://other.org/a", "example.com", true, false},
		{"ftp://example.com/a", "example.com", false, false},
		{"https://example.com:8443/a", "example.com", false, false},
		{"https://example.com:8443/a", "example.com:8443", false, true},
		{"https://docs.example.com:8443/a", "example.com:8443", true, true},
	}

	for _, tc := range cases {
		u, err := url.Parse(tc.url)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.url, err)
		}
		if got := inScope(u, tc.base, tc.subdomains); got != tc.want {
			t.Fatalf("inScope(%q, %q, %v) = %v, want %v", tc.url, tc.base, tc.subdomains, got, tc.want)
		}
	}
}
