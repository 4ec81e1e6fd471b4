package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// cl100k_base is the encoding used by the chat/embedding model families
// this package's providers target. Loaded lazily since it requires
// fetching the BPE rank file on first use; if that fails (offline, no
// cache), callers fall back to a chars-per-token estimate rather than
// panicking on a package best reached through a live model anyway.
func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// approxCharsPerToken is the fallback ratio used when the tiktoken
// encoding could not be loaded.
const approxCharsPerToken = 4

// TruncateToTokens truncates text to at most maxTokens tokens, replacing
// the teacher's fixed-character heuristic (`maxChars := 4000`) with an
// actual token count so the truncation threshold tracks what the model's
// context window charges for, not a guessed chars-per-token ratio.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}

	enc := tokenEncoding()
	if enc == nil {
		maxChars := maxTokens * approxCharsPerToken
		runes := []rune(text)
		if len(runes) <= maxChars {
			return text
		}
		return string(runes[:maxChars])
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}

	return enc.Decode(tokens[:maxTokens])
}

// CountTokens returns the token count of text, falling back to a
// chars-per-token estimate if the tiktoken encoding is unavailable.
func CountTokens(text string) int {
	enc := tokenEncoding()
	if enc == nil {
		return (len([]rune(text)) + approxCharsPerToken - 1) / approxCharsPerToken
	}
	return len(enc.Encode(text, nil, nil))
}
