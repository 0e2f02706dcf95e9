package embedder

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 200
)

// sentence enders followed by whitespace mark preferred cut points.
var boundaryEnders = []rune{'.', '!', '?'}

// Span is one chunk of source text. Start and End are character
// offsets into the original text; Content is the trimmed slice.
type Span struct {
	Content string
	Start   int
	End     int
}

// ChunkText splits text into spans of at most size characters with the
// given overlap between consecutive spans. Cuts prefer a sentence
// boundary found in the last fifth of the window; when none exists the
// window is cut at full size. Offsets are in runes so multibyte text
// cannot be split mid-character.
func ChunkText(text string, size, overlap int) []Span {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		content := strings.TrimSpace(text)
		if content == "" {
			return nil
		}
		return []Span{{Content: content, Start: 0, End: len(runes)}}
	}

	var spans []Span
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		// Only interior cuts look for a boundary; the final chunk
		// takes whatever is left.
		if end < len(runes) {
			if b := findBoundary(runes, start+size*4/5, end); b > 0 {
				end = b
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			spans = append(spans, Span{Content: content, Start: start, End: end})
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// findBoundary scans right to left for a sentence ender followed by
// whitespace inside [from, to) and returns the cut position just after
// the separator, or 0 when there is none.
func findBoundary(runes []rune, from, to int) int {
	if from < 0 {
		from = 0
	}
	for i := to - 1; i > from; i-- {
		if runes[i] != ' ' && runes[i] != '\n' {
			continue
		}
		for _, ender := range boundaryEnders {
			if runes[i-1] == ender {
				return i + 1
			}
		}
	}
	return 0
}
