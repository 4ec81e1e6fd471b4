package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/metrics"
	"github.com/codecompass/codecompass-go/internal/pipeline"
	"github.com/codecompass/codecompass-go/internal/retriever"
	"github.com/codecompass/codecompass-go/internal/session"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/tools"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func newTestHost(t *testing.T, repoPath string) *Host {
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
	metricsReg, collector := metrics.NewRegistry()
	pl := pipeline.New(cfg, store, embedder, tracker).WithMetrics(collector)

	reg := tools.New(tools.Deps{
		Config:    cfg,
		Store:     store,
		Providers: providers,
		Retriever: retr,
		Sessions:  sessions,
		Tracker:   tracker,
		Pipeline:  pl,
		RepoPath:  repoPath,
		Metrics:   collector,
	})

	return New(cfg, reg, sessions, tracker, repoPath, metricsReg)
}

func TestHandlePingReturnsServiceInfo(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()

	h.newRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out pingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "codecompass", out.Service)
	assert.Equal(t, "ok", out.Status)
}

func TestHandleIndexingStatusReportsIdle(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/api/indexing-status", nil)
	rec := httptest.NewRecorder()

	h.newRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, status.PhaseIdle, snap.Phase)
}

func TestHandleNotifyUpdateAccepts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	h := newTestHost(t, dir)

	req := httptest.NewRequest(http.MethodPost, "/api/repository/notify-update", nil)
	rec := httptest.NewRecorder()
	h.newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleNotifyUpdateRejectsWhenActive(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	require.True(t, h.tracker.Begin())

	req := httptest.NewRequest(http.MethodPost, "/api/repository/notify-update", nil)
	rec := httptest.NewRecorder()
	h.newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleMetricsIsServed(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	h.newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestStructureTextListsRepositoryFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	h := newTestHost(t, dir)
	text, err := h.structureText(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "main.go")
}

func TestFileContentTextReturnsFileBody(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	h := newTestHost(t, dir)
	text, err := h.fileContentText(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Contains(t, text, "package main")
}

func TestRelPathFromFileURI(t *testing.T) {
	relPath, ok := relPathFromFileURI("repo://files/main.go")
	require.True(t, ok)
	assert.Equal(t, "main.go", relPath)

	_, ok = relPathFromFileURI("repo://files/")
	assert.False(t, ok)

	_, ok = relPathFromFileURI("something-else")
	assert.False(t, ok)
}

func TestHealthPayloadReportsRepositoryValidity(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	payload := h.healthPayload()
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, false, payload["repository_valid"])
}

func TestVersionPayloadReportsServerIdentity(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	payload := h.versionPayload()
	assert.Equal(t, "codecompass", payload["service"])
}

func TestPromptTextReferencesItsTool(t *testing.T) {
	text := promptText("search_code", "Search for: %s", "login flow")
	assert.Contains(t, text, "login flow")
	assert.Contains(t, text, "search_code")
}

func TestIsAddrInUseDetectsSyscallError(t *testing.T) {
	assert.False(t, isAddrInUse(nil))
	assert.True(t, isAddrInUse(os.NewSyscallError("bind", syscall.EADDRINUSE)))
}
