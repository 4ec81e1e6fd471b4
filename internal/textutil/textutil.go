// Package textutil implements the text normalization and chunking
// primitives shared by indexing, retrieval, and point-ID derivation.
// Every caller that needs deterministic ids or fixed-size windows goes
// through Preprocess and Chunk rather than rolling its own.
package textutil

import (
	"strings"
	"unicode"
)

// Preprocess deterministically normalizes text for both embedding input and
// point-ID derivation: trims leading/trailing whitespace, collapses runs of
// whitespace to a single space, and lowercases. Preprocess is idempotent:
// Preprocess(Preprocess(x)) == Preprocess(x).
func Preprocess(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastWasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		lastWasSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

// Chunk splits text into an ordered sequence of fixed-size character windows
// with overlap. The union of the returned chunks covers text; consecutive
// chunks share exactly overlap characters; each chunk has length <= size.
// Empty input produces no chunks. Chunk panics if size <= overlap, since a
// non-advancing window would never terminate.
func Chunk(text string, size, overlap int) []string {
	if size <= overlap {
		panic("textutil: Chunk requires size > overlap")
	}
	if len(text) == 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	stride := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "as": {}, "at": {}, "by": {},
	"it": {}, "this": {}, "that": {}, "from": {}, "not": {},
}

// ExtractKeywords preprocesses text, splits on whitespace, drops words
// shorter than three characters and stopwords, and deduplicates while
// preserving first-occurrence order.
func ExtractKeywords(text string) []string {
	words := strings.Fields(Preprocess(text))

	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}

	return keywords
}
