// Command codecompass runs the CodeCompass MCP server: the stdio MCP
// transport, the utility HTTP API, and single-instance coordination, all
// bound to the repository given as the first argument (or the current
// directory).
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codecompass/codecompass-go/internal/agent"
	"github.com/codecompass/codecompass-go/internal/gitinspect"
	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/metrics"
	"github.com/codecompass/codecompass-go/internal/pipeline"
	"github.com/codecompass/codecompass-go/internal/retriever"
	"github.com/codecompass/codecompass-go/internal/server"
	"github.com/codecompass/codecompass-go/internal/session"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/tools"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

func main() {
	repoPath, err := repoPathFromArgs()
	if err != nil {
		log.Fatalf("codecompass: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("codecompass: failed to load configuration: %v", err)
	}

	slog.SetLogLoggerLevel(parseLevel(cfg.Logging.Level))
	slog.Info("codecompass: starting", "repository", repoPath, "http_port", cfg.Server.HTTPPort)

	if !gitinspect.ValidateRepository(repoPath) {
		log.Fatalf("codecompass: %s is not a valid Git repository", repoPath)
	}

	store, err := vectorstore.New(&cfg.VectorDB)
	if err != nil {
		log.Fatalf("codecompass: failed to connect to the vector store: %v", err)
	}
	defer store.Close()

	providers := llm.NewDefaultRegistry()
	embedder, err := llm.EmbeddingProvider(providers, cfg)
	if err != nil {
		log.Fatalf("codecompass: failed to construct the embedding provider: %v", err)
	}

	retr := retriever.New(store, embedder)
	sessions := session.New()
	tracker := status.NewTracker()

	metricsReg, collector := metrics.NewRegistry()

	pl := pipeline.New(cfg, store, embedder, tracker).WithMetrics(collector)

	registry := tools.New(tools.Deps{
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

	suggestionProvider, err := llm.SuggestionProvider(providers, cfg)
	if err != nil {
		slog.Warn("codecompass: no suggestion provider available at startup; model-requiring tools will report unavailable", "error", err)
		suggestionProvider = mustMockProvider(cfg)
	}

	loop := agent.New(suggestionProvider, sessions, registry, agent.Timeouts{
		Reasoning:     cfg.Agent.ReasoningTimeout,
		Tool:          cfg.Agent.ToolTimeout,
		FinalResponse: cfg.Agent.FinalResponseTimeout,
	}, agent.StepBounds{
		DefaultMaxSteps:  cfg.Agent.DefaultMaxSteps,
		AbsoluteMaxSteps: cfg.Agent.AbsoluteMaxSteps,
	}).WithMetrics(collector)
	registry.SetAgentLoop(loop)

	host := server.New(cfg, registry, sessions, tracker, repoPath, metricsReg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Kick off the initial indexing pass in the background so the server
	// doesn't block startup on it; a SIGINT/SIGTERM cancels it alongside
	// the MCP/HTTP transports via the shared ctx. trigger_repository_update
	// remains available for re-indexing after this first pass completes.
	go func() {
		slog.Info("codecompass: starting background indexing", "repository", repoPath)
		if err := pl.Run(ctx, repoPath); err != nil {
			slog.Error("codecompass: background indexing failed", "error", err)
		}
	}()

	if err := host.Run(ctx); err != nil {
		log.Fatalf("codecompass: %v", err)
	}
}

func repoPathFromArgs() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	return os.Getwd()
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// mustMockProvider is the last-resort suggestion provider when the
// configured one can't be constructed at startup, so agent_query still
// has a Provider to pass timeouts through (switch_suggestion_model
// remains the path to a working one).
func mustMockProvider(cfg *config.Config) llm.Provider {
	p, _ := llm.NewMockFactory(cfg, cfg.Suggestion.Model)
	return p
}
