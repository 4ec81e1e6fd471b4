package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/pipeline"
	"github.com/codecompass/codecompass-go/internal/retriever"
	"github.com/codecompass/codecompass-go/internal/session"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func newTestRegistry(t *testing.T, repoPath string) (*Registry, *vectorstore.Fake) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Suggestion.Provider = "mock"
	cfg.Suggestion.Model = "mock"

	providers := llm.NewRegistry()
	providers.Register("mock", llm.NewMockFactory)

	store := vectorstore.NewFake()
	embedder, err := llm.NewMockFactory(cfg, "mock")
	require.NoError(t, err)

	retr := retriever.New(store, embedder)
	sessions := session.New()
	tracker := status.NewTracker()
	pl := pipeline.New(cfg, store, embedder, tracker)

	reg := New(Deps{
		Config:    cfg,
		Store:     store,
		Providers: providers,
		Retriever: retr,
		Sessions:  sessions,
		Tracker:   tracker,
		Pipeline:  pl,
		RepoPath:  repoPath,
	})
	return reg, store
}

func seed(t *testing.T, store *vectorstore.Fake, filepath_, content string) {
	t.Helper()
	cfg := config.DefaultConfig()
	embedder, err := llm.NewMockFactory(cfg, "mock")
	require.NoError(t, err)
	vec, err := embedder.GenerateEmbedding(context.Background(), content)
	require.NoError(t, err)
	require.NoError(t, store.BatchUpsert(context.Background(), []vectorstore.Point{{
		ID:     vectorstore.PointID("file:" + filepath_),
		Vector: vec,
		Payload: vectorstore.NewFileChunkPayload(vectorstore.FileChunkPayload{
			Filepath:         filepath_,
			FileContentChunk: content,
			ChunkIndex:       0,
			TotalChunks:      1,
		}),
	}}, 10))
}

func TestDispatchUnknownToolErrors(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	_, err := reg.Dispatch(context.Background(), nil, "nonexistent", map[string]any{})
	assert.Error(t, err)
}

func TestSearchCodeRequiresQuery(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	_, err := reg.Dispatch(context.Background(), nil, "search_code", map[string]any{})
	assert.Error(t, err)
}

func TestSearchCodeReturnsResults(t *testing.T) {
	reg, store := newTestRegistry(t, t.TempDir())
	seed(t, store, "auth/login.go", "authenticates a user session")

	sess, err := reg.sessions.GetOrCreate("", t.TempDir())
	require.NoError(t, err)

	// The mock model is available, so the returned text is its summary;
	// the hits themselves are recorded on the session's context.
	out, err := reg.Dispatch(context.Background(), sess, "search_code", map[string]any{"query": "authenticates a user session"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, []string{"auth/login.go"}, sess.Context.LastFiles)
}

func TestGetChangelogReturnsFileContents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte("## v1\n- initial release\n"), 0o644))

	reg, _ := newTestRegistry(t, dir)
	out, err := reg.Dispatch(context.Background(), nil, "get_changelog", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "initial release")
}

func TestGetChangelogWithoutFileReturnsFixedMessage(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	out, err := reg.Dispatch(context.Background(), nil, "get_changelog", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "No CHANGELOG.md")
}

func TestGenerateSuggestionSucceedsWithMockModel(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	out, err := reg.Dispatch(context.Background(), nil, "generate_suggestion", map[string]any{"query": "how does auth work"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestGetIndexingStatusReportsIdlePhase(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	out, err := reg.Dispatch(context.Background(), nil, "get_indexing_status", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
}

func TestSwitchSuggestionModelUpdatesConfig(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	out, err := reg.Dispatch(context.Background(), nil, "switch_suggestion_model", map[string]any{"model": "mock", "provider": "mock"})
	require.NoError(t, err)
	assert.Contains(t, out, "switched to provider=mock model=mock")
	assert.Equal(t, "mock", reg.cfg.CurrentSuggestion().Model)
}

func TestSwitchSuggestionModelRequiresModelParam(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	_, err := reg.Dispatch(context.Background(), nil, "switch_suggestion_model", map[string]any{})
	assert.Error(t, err)
}

func TestRequestAdditionalContextFullFileContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	reg, _ := newTestRegistry(t, dir)
	out, err := reg.Dispatch(context.Background(), nil, "request_additional_context", map[string]any{
		"context_type":  contextFullFileContent,
		"query_or_path": "main.go",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "package main")
}

func TestRequestAdditionalContextRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	reg, _ := newTestRegistry(t, dir)
	_, err := reg.Dispatch(context.Background(), nil, "request_additional_context", map[string]any{
		"context_type":  contextFullFileContent,
		"query_or_path": "../../etc/passwd",
	})
	assert.Error(t, err)
}

func TestRequestAdditionalContextDirectoryListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	reg, _ := newTestRegistry(t, dir)
	out, err := reg.Dispatch(context.Background(), nil, "request_additional_context", map[string]any{
		"context_type":  contextDirectoryListing,
		"query_or_path": ".",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "a.go")
	assert.Contains(t, out, "sub")
}

func TestRequestAdditionalContextAdjacentFileChunks(t *testing.T) {
	reg, store := newTestRegistry(t, t.TempDir())
	cfg := config.DefaultConfig()
	embedder, err := llm.NewMockFactory(cfg, "mock")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		content := []string{"chunk zero", "chunk one", "chunk two"}[i]
		vec, err := embedder.GenerateEmbedding(ctx, content)
		require.NoError(t, err)
		require.NoError(t, store.BatchUpsert(ctx, []vectorstore.Point{{
			ID:     vectorstore.PointID("file:main.go:chunk:" + string(rune('0'+i))),
			Vector: vec,
			Payload: vectorstore.NewFileChunkPayload(vectorstore.FileChunkPayload{
				Filepath:         "main.go",
				FileContentChunk: content,
				ChunkIndex:       i,
				TotalChunks:      3,
			}),
		}}, 10))
	}

	out, err := reg.Dispatch(ctx, nil, "request_additional_context", map[string]any{
		"context_type":  contextAdjacentFileChunks,
		"query_or_path": "main.go",
		"chunk_index":   float64(1),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "chunk zero")
	assert.Contains(t, out, "chunk two")
}

func TestTriggerRepositoryUpdateRejectsWhenActive(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	require.True(t, reg.tracker.Begin())

	_, err := reg.Dispatch(context.Background(), nil, "trigger_repository_update", map[string]any{})
	assert.Error(t, err)
}

func TestSystemPromptCatalogOmitsModelRequiringToolsWhenUnavailable(t *testing.T) {
	reg, _ := newTestRegistry(t, t.TempDir())
	catalog := reg.SystemPromptCatalog(false)
	assert.NotContains(t, catalog, "generate_suggestion")
	assert.Contains(t, catalog, "search_code")

	withModel := reg.SystemPromptCatalog(true)
	assert.Contains(t, withModel, "generate_suggestion")
}
