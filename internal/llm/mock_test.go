package llm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerateEmbeddingDeterministic(t *testing.T) {
	m := &MockProvider{dimension: 256}
	ctx := context.Background()

	v1, err := m.GenerateEmbedding(ctx, "hello world")
	require.NoError(t, err)
	v2, err := m.GenerateEmbedding(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 256)
}

func TestMockGenerateEmbeddingDistinctInputs(t *testing.T) {
	m := &MockProvider{dimension: 64}
	ctx := context.Background()

	v1, err := m.GenerateEmbedding(ctx, "alpha")
	require.NoError(t, err)
	v2, err := m.GenerateEmbedding(ctx, "beta")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestMockGenerateEmbeddingRejectsEmpty(t *testing.T) {
	m := &MockProvider{dimension: 64}
	_, err := m.GenerateEmbedding(context.Background(), "")
	assert.Error(t, err)
}

func TestMockGenerateEmbeddingIsNormalized(t *testing.T) {
	m := &MockProvider{dimension: 128}
	v, err := m.GenerateEmbedding(context.Background(), "normalize me")
	require.NoError(t, err)

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestMockProcessFeedbackIncorporatesFeedback(t *testing.T) {
	m := &MockProvider{dimension: 32}
	out, err := m.ProcessFeedback(context.Background(), "q", "suggestion", "make it shorter", 0.4)
	require.NoError(t, err)
	assert.Contains(t, out, "make it shorter")
}
