// Command codecompass-query runs a single refined vector search against an
// already-indexed repository and prints the results, without starting the
// MCP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/retriever"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func main() {
	query := flag.String("query", "", "Search query")
	repoPath := flag.String("repo", "", "Repository path (defaults to the current directory)")
	flag.Parse()

	if *repoPath == "" {
		var err error
		*repoPath, err = os.Getwd()
		if err != nil {
			log.Fatalf("codecompass-query: failed to resolve repository path: %v", err)
		}
	}
	if *query == "" {
		log.Fatalf("codecompass-query: -query is required")
	}

	slog.Info("codecompass-query: starting search", "repository", *repoPath, "query", *query)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("codecompass-query: failed to load configuration: %v", err)
	}

	store, err := vectorstore.New(&cfg.VectorDB)
	if err != nil {
		log.Fatalf("codecompass-query: failed to connect to the vector store: %v", err)
	}
	defer store.Close()

	providers := llm.NewDefaultRegistry()
	embedder, err := llm.EmbeddingProvider(providers, cfg)
	if err != nil {
		log.Fatalf("codecompass-query: failed to construct the embedding provider: %v", err)
	}

	retr := retriever.New(store, embedder)

	start := time.Now()
	outcome, err := retr.SearchWithRefinement(context.Background(), *query, retriever.Options{
		Limit:              cfg.Search.QdrantSearchLimitDefault,
		MaxRefinements:     cfg.Search.MaxRefinementIterations,
		RelevanceThreshold: cfg.Search.RelevanceThreshold,
	})
	duration := time.Since(start)
	if err != nil {
		log.Fatalf("codecompass-query: search failed: %v", err)
	}

	slog.Info("codecompass-query: search completed",
		"duration", duration, "results_found", len(outcome.Results),
		"refined_query", outcome.RefinedQuery, "relevance_score", outcome.RelevanceScore)

	if len(outcome.Results) == 0 {
		slog.Warn("codecompass-query: no results found")
		return
	}

	for i, r := range outcome.Results {
		fmt.Printf("%2d. [%.3f] %s\n", i+1, r.Score, r.Filepath)
	}
}
