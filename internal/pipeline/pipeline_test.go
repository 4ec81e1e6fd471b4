package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	env := append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = env
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	run("config", "user.name", "Test")
	run("config", "user.email", "test@example.com")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")

	return dir
}

func testPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *vectorstore.Fake) {
	t.Helper()
	fake := vectorstore.NewFake()
	embedder, err := llm.NewMockFactory(cfg, "mock")
	require.NoError(t, err)
	tracker := status.NewTracker()
	return New(cfg, fake, embedder, tracker), fake
}

func TestRunIndexesFileChunks(t *testing.T) {
	dir := initTestRepo(t)
	cfg := config.DefaultConfig()
	cfg.Indexing.ParallelWorkers = 2
	cfg.Indexing.QdrantBatchUpsertSize = 10

	p, fake := testPipeline(t, cfg)

	err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Greater(t, fake.Len(), 0)
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	dir := initTestRepo(t)
	cfg := config.DefaultConfig()
	p, _ := testPipeline(t, cfg)

	require.True(t, p.tracker.Begin())
	err := p.Run(context.Background(), dir)
	assert.Error(t, err)
}

func TestPruneStaleRemovesDeletedFiles(t *testing.T) {
	dir := initTestRepo(t)
	cfg := config.DefaultConfig()
	p, fake := testPipeline(t, cfg)

	require.NoError(t, p.Run(context.Background(), dir))
	before := fake.Len()
	require.Greater(t, before, 0)

	require.NoError(t, os.Remove(filepath.Join(dir, "main.go")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.go"), []byte("package main\n"), 0o644))
	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
	cmd = exec.Command("git", "commit", "-q", "-m", "swap file")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com")
	require.NoError(t, cmd.Run())

	tracker2 := status.NewTracker()
	p2 := New(cfg, fake, p.embedder, tracker2)
	require.NoError(t, p2.Run(context.Background(), dir))

	for _, pt := range fakePoints(fake) {
		if pt.Payload.File != nil {
			assert.NotEqual(t, "main.go", pt.Payload.File.Filepath)
		}
	}
}

func fakePoints(f *vectorstore.Fake) []vectorstore.Point {
	points, _, err := f.Scroll(context.Background(), nil, 1000, nil)
	if err != nil {
		return nil
	}
	return points
}
