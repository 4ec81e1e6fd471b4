package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessIdempotent(t *testing.T) {
	inputs := []string{
		"  Hello   World  \n\t",
		"ALREADY lower case",
		"",
		"MixedCASE\nwith\nnewlines",
	}
	for _, in := range inputs {
		once := Preprocess(in)
		twice := Preprocess(once)
		assert.Equal(t, once, twice, "Preprocess must be idempotent for %q", in)
	}
}

func TestPreprocessNormalizesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "hello world", Preprocess("  Hello   World  "))
	assert.Equal(t, "a b c", Preprocess("A\nB\t\tC"))
}

func TestChunkEmptyInput(t *testing.T) {
	assert.Nil(t, Chunk("", 100, 10))
}

func TestChunkSmallerThanSizeProducesOneChunk(t *testing.T) {
	text := "short text"
	chunks := Chunk(text, 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkCoversAndReconstructs(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50) // 500 chars
	size, overlap := 37, 11

	chunks := Chunk(text, size, overlap)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), size)
	}

	var reconstructed strings.Builder
	stride := size - overlap
	for i, c := range chunks {
		runes := []rune(c)
		if i == len(chunks)-1 {
			reconstructed.WriteString(string(runes))
		} else {
			n := stride
			if n > len(runes) {
				n = len(runes)
			}
			reconstructed.WriteString(string(runes[:n]))
		}
	}
	assert.Equal(t, text, reconstructed.String())
}

func TestChunkPanicsWhenSizeNotGreaterThanOverlap(t *testing.T) {
	assert.Panics(t, func() { Chunk("hello", 10, 10) })
	assert.Panics(t, func() { Chunk("hello", 10, 20) })
}

func TestExtractKeywordsDropsStopwordsAndShortWords(t *testing.T) {
	kws := ExtractKeywords("The quick brown fox and the lazy dog is running")
	assert.NotContains(t, kws, "the")
	assert.NotContains(t, kws, "is")
	assert.Contains(t, kws, "quick")
	assert.Contains(t, kws, "brown")
}

func TestExtractKeywordsDeduplicatesPreservingOrder(t *testing.T) {
	kws := ExtractKeywords("cache cache miss cache hit")
	assert.Equal(t, []string{"cache", "miss", "hit"}, kws)
}
