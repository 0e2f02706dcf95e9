package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultHighlightCount is the number of snippets returned when the
	// caller does not ask for a specific count.
	DefaultHighlightCount = 3
	// DefaultHighlightWindow bounds snippet length: sentences longer
	// than twice this are truncated.
	DefaultHighlightWindow = 150
)

// Highlights returns up to k sentences from text that mention terms of
// query, ordered by how many terms they contain. Ties keep document
// order. Sentences longer than 2*window runes are truncated with a
// trailing ellipsis.
func Highlights(text, query string, k, window int) []string {
	if text == "" || query == "" || k <= 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultHighlightWindow
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		score    int
		sentence string
	}

	var candidates []scored
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		score := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{score: score, sentence: sentence})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		s := c.sentence
		if utf8.RuneCountInString(s) > 2*window {
			r := []rune(s)
			s = string(r[:2*window]) + "..."
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// splitSentences cuts text after [.!?] runs that are followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		k := j
		for k < len(text) {
			r, size := utf8.DecodeRuneInString(text[k:])
			if !unicode.IsSpace(r) {
				break
			}
			k += size
		}
		if k > j {
			out = append(out, text[start:j])
			start = k
			i = k - 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
