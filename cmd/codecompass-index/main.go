// Command codecompass-index runs a single, synchronous indexing pass over
// a repository and exits, without starting the MCP server.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/pipeline"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func main() {
	repoPath, err := repoPathFromArgs()
	if err != nil {
		log.Fatalf("codecompass-index: failed to resolve repository path: %v", err)
	}

	slog.Info("codecompass-index: starting repository indexing", "repository", repoPath)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("codecompass-index: failed to load configuration: %v", err)
	}

	store, err := vectorstore.New(&cfg.VectorDB)
	if err != nil {
		log.Fatalf("codecompass-index: failed to connect to the vector store: %v", err)
	}
	defer store.Close()

	providers := llm.NewDefaultRegistry()
	embedder, err := llm.EmbeddingProvider(providers, cfg)
	if err != nil {
		log.Fatalf("codecompass-index: failed to construct the embedding provider: %v", err)
	}

	tracker := status.NewTracker()
	pl := pipeline.New(cfg, store, embedder, tracker)

	start := time.Now()
	if err := pl.Run(context.Background(), repoPath); err != nil {
		snap := tracker.Snapshot()
		slog.Error("codecompass-index: indexing failed",
			"error", err, "files_indexed", snap.FilesIndexed, "files_total", snap.FilesTotal,
			"duration", time.Since(start))
		os.Exit(1)
	}

	snap := tracker.Snapshot()
	slog.Info("codecompass-index: indexing completed",
		"files_indexed", snap.FilesIndexed, "files_total", snap.FilesTotal,
		"commits_indexed", snap.CommitsIndexed, "duration", time.Since(start))
}

func repoPathFromArgs() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	return os.Getwd()
}
