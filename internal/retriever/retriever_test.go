package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func seedStore(t *testing.T, store *vectorstore.Fake, embedder llm.Provider, chunks map[string]string) {
	t.Helper()
	ctx := context.Background()
	for filepath, content := range chunks {
		vec, err := embedder.GenerateEmbedding(ctx, content)
		require.NoError(t, err)
		require.NoError(t, store.BatchUpsert(ctx, []vectorstore.Point{{
			ID:     vectorstore.PointID("file:" + filepath),
			Vector: vec,
			Payload: vectorstore.NewFileChunkPayload(vectorstore.FileChunkPayload{
				Filepath:         filepath,
				FileContentChunk: content,
			}),
		}}, 10))
	}
}

func TestSearchWithRefinementFindsExactMatch(t *testing.T) {
	cfg := config.DefaultConfig()
	embedder, err := llm.NewMockFactory(cfg, "mock")
	require.NoError(t, err)

	store := vectorstore.NewFake()
	seedStore(t, store, embedder, map[string]string{
		"auth/login.go":  "function that authenticates a user login session",
		"db/connect.go":  "opens a database connection pool",
		"util/strings.go": "string helper utilities",
	})

	r := New(store, embedder)
	out, err := r.SearchWithRefinement(context.Background(), "function that authenticates a user login session", Options{Limit: 1})
	require.NoError(t, err)

	require.NotEmpty(t, out.Results)
	assert.Equal(t, "auth/login.go", out.Results[0].Filepath)
	assert.GreaterOrEqual(t, out.RelevanceScore, 0.99)
}

func TestSearchWithRefinementRespectsMaxRefinements(t *testing.T) {
	cfg := config.DefaultConfig()
	embedder, err := llm.NewMockFactory(cfg, "mock")
	require.NoError(t, err)

	store := vectorstore.NewFake()
	seedStore(t, store, embedder, map[string]string{
		"a.go": "alpha content",
		"b.go": "beta content",
	})

	r := New(store, embedder)
	query := `"completely.go" (unrelated) query text`
	out, err := r.SearchWithRefinement(context.Background(), query, Options{
		MaxRefinements:     2,
		RelevanceThreshold: 0.99,
	})
	require.NoError(t, err)
	assert.NotEqual(t, query, out.RefinedQuery)
}

func TestBroadenStripsPunctuationAndExtensions(t *testing.T) {
	out := broaden(`"login.go" (handler)`)
	assert.NotContains(t, out, `"`)
	assert.NotContains(t, out, "(")
	assert.NotContains(t, out, ".go")
}

func TestBroadenExtendsTooShortQuery(t *testing.T) {
	out := broaden("\"x\"")
	assert.Greater(t, len(out), 1)
}

func TestTweakAppendsTopLevelDirOnce(t *testing.T) {
	results := []vectorstore.SearchResult{{
		Point: vectorstore.Point{Payload: vectorstore.NewFileChunkPayload(vectorstore.FileChunkPayload{
			Filepath: "auth/login.go",
		})},
	}}

	out := tweak("user login", results)
	assert.Contains(t, out, "auth")

	again := tweak(out, results)
	assert.Equal(t, out, again)
}

func TestFocusAppendsUnusedKeywords(t *testing.T) {
	results := []vectorstore.SearchResult{{
		Point: vectorstore.Point{Payload: vectorstore.NewFileChunkPayload(vectorstore.FileChunkPayload{
			FileContentChunk: "database connection pooling retries backoff",
		})},
	}}

	out := focus("database connection", results)
	assert.NotEqual(t, "database connection", out)
}
