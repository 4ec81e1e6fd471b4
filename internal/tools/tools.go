// Package tools implements the ToolRegistry: the set of named operations
// the agent loop and MCP clients can invoke, each validating its own
// parameters and dispatched by name rather than a type switch.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/codecompass/codecompass-go/internal/agent"
	"github.com/codecompass/codecompass-go/internal/apperr"
	"github.com/codecompass/codecompass-go/internal/gitinspect"
	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/metrics"
	"github.com/codecompass/codecompass-go/internal/pipeline"
	"github.com/codecompass/codecompass-go/internal/retriever"
	"github.com/codecompass/codecompass-go/internal/session"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
)

// Descriptor documents one tool for both the system prompt and any
// capability listing exposed over MCP.
type Descriptor struct {
	Name             string
	Description      string
	ParametersSchema string
	RequiresModel    bool
}

// Handler executes a tool call. params has already been decoded from the
// TOOL_CALL: JSON line or an MCP tool-call request.
type Handler func(ctx context.Context, sess *session.Session, params map[string]any) (string, error)

type entry struct {
	Descriptor
	handler Handler
}

// Registry is the name-keyed (map[string]entry) dispatch table described by the
// component design, replacing a large type switch.
type Registry struct {
	cfg        *config.Config
	store      vectorstore.VectorStore
	providers  *llm.Registry
	retriever  *retriever.Retriever
	sessions   *session.Store
	tracker    *status.Tracker
	pipeline   *pipeline.Pipeline
	agentLoop  *agent.Loop
	repoPath   string
	metrics    *metrics.Collector
	entries    map[string]entry
	order      []string
}

// Deps bundles the collaborators a Registry dispatches into. Metrics is
// optional: a nil Collector simply disables observation.
type Deps struct {
	Config     *config.Config
	Store      vectorstore.VectorStore
	Providers  *llm.Registry
	Retriever  *retriever.Retriever
	Sessions   *session.Store
	Tracker    *status.Tracker
	Pipeline   *pipeline.Pipeline
	RepoPath   string
	Metrics    *metrics.Collector
}

// New builds a Registry with every tool named in the component design
// registered. The AgentLoop is wired in afterward via SetAgentLoop, since
// constructing it requires the Registry itself as a Dispatcher.
func New(d Deps) *Registry {
	r := &Registry{
		cfg:       d.Config,
		store:     d.Store,
		providers: d.Providers,
		retriever: d.Retriever,
		sessions:  d.Sessions,
		tracker:   d.Tracker,
		pipeline:  d.Pipeline,
		repoPath:  d.RepoPath,
		metrics:   d.Metrics,
		entries:   make(map[string]entry),
	}
	r.registerAll()
	return r
}

// SetAgentLoop wires the AgentLoop used by the agent_query tool.
func (r *Registry) SetAgentLoop(loop *agent.Loop) {
	r.agentLoop = loop
}

func (r *Registry) register(d Descriptor, h Handler) {
	r.entries[d.Name] = entry{Descriptor: d, handler: h}
	r.order = append(r.order, d.Name)
}

func (r *Registry) registerAll() {
	r.register(Descriptor{
		Name:             "search_code",
		Description:      "Refined vector search over indexed code and commits, returning summarized snippets.",
		ParametersSchema: `{"query":"string","sessionId":"string?"}`,
	}, r.searchCode)

	r.register(Descriptor{
		Name:             "get_repository_context",
		Description:      "Search plus the latest repository diff plus a summary of recent queries.",
		ParametersSchema: `{"query":"string","sessionId":"string?"}`,
	}, r.getRepositoryContext)

	r.register(Descriptor{
		Name:             "generate_suggestion",
		Description:      "Retrieval-augmented generation of a code suggestion.",
		ParametersSchema: `{"query":"string","sessionId":"string?"}`,
		RequiresModel:    true,
	}, r.generateSuggestion)

	r.register(Descriptor{
		Name:             "get_changelog",
		Description:      "Returns the contents of CHANGELOG.md at the repository root, if present.",
		ParametersSchema: `{}`,
	}, r.getChangelog)

	r.register(Descriptor{
		Name:             "analyze_code_problem",
		Description:      "Two-pass analysis (diagnosis, then implementation plan) of a described problem.",
		ParametersSchema: `{"query":"string","sessionId":"string?"}`,
		RequiresModel:    true,
	}, r.analyzeCodeProblem)

	r.register(Descriptor{
		Name:             "agent_query",
		Description:      "Invokes the multi-step agent loop for a complex query.",
		ParametersSchema: `{"query":"string","sessionId":"string?"}`,
	}, r.agentQuery)

	r.register(Descriptor{
		Name:             "request_additional_context",
		Description:      "Fetches more search results, a full file, a directory listing, or adjacent chunks.",
		ParametersSchema: `{"context_type":"string","query_or_path":"string","chunk_index":"number?","reasoning":"string?","sessionId":"string?"}`,
	}, r.requestAdditionalContext)

	r.register(Descriptor{
		Name:             "request_more_processing_steps",
		Description:      "Acknowledges a request to raise the agent loop's step budget to its absolute maximum.",
		ParametersSchema: `{"reasoning":"string"}`,
	}, r.requestMoreProcessingSteps)

	r.register(Descriptor{
		Name:             "switch_suggestion_model",
		Description:      "Switches the active suggestion provider/model and clears provider caches.",
		ParametersSchema: `{"model":"string","provider":"string?"}`,
	}, r.switchSuggestionModel)

	r.register(Descriptor{
		Name:             "get_indexing_status",
		Description:      "Returns a snapshot of the current indexing run's progress.",
		ParametersSchema: `{}`,
	}, r.getIndexingStatus)

	r.register(Descriptor{
		Name:             "trigger_repository_update",
		Description:      "Starts a re-index run; rejected if one is already active.",
		ParametersSchema: `{}`,
	}, r.triggerRepositoryUpdate)
}

// Dispatch implements agent.Dispatcher: looks up name, validates model
// availability, and invokes its handler.
func (r *Registry) Dispatch(ctx context.Context, sess *session.Session, name string, params map[string]any) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", apperr.New(apperr.KindValidation, "Registry.Dispatch", fmt.Errorf("unknown tool %q", name))
	}
	if e.RequiresModel && !r.suggestionModelAvailable(ctx) {
		return "", apperr.New(apperr.KindValidation, "Registry.Dispatch",
			fmt.Errorf("tool %q requires a suggestion model but none is available", name))
	}

	started := time.Now()
	result, err := e.handler(ctx, sess, params)
	if r.metrics != nil {
		r.metrics.ObserveToolCall(name, err, time.Since(started))
	}
	return result, err
}

// SystemPromptCatalog implements agent.Dispatcher: renders every tool
// whose requiresModel is satisfied by modelAvailable.
func (r *Registry) SystemPromptCatalog(modelAvailable bool) string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available tools (call with a line beginning \"TOOL_CALL:\" followed by {\"tool\":...,\"parameters\":{...}}):\n")
	for _, name := range names {
		e := r.entries[name]
		if e.RequiresModel && !modelAvailable {
			continue
		}
		fmt.Fprintf(&b, "- %s%s: %s params=%s\n", e.Name, requiresSuffix(e.RequiresModel), e.Description, e.ParametersSchema)
	}
	return b.String()
}

func requiresSuffix(requires bool) string {
	if requires {
		return " (requires model)"
	}
	return ""
}

func (r *Registry) suggestionModelAvailable(ctx context.Context) bool {
	snap := r.cfg.CurrentSuggestion()
	p, err := r.providers.Get(r.cfg, snap.Provider, snap.Model)
	if err != nil {
		return false
	}
	return p.CheckConnection(ctx)
}

func (r *Registry) suggestionProvider(ctx context.Context) (llm.Provider, bool) {
	snap := r.cfg.CurrentSuggestion()
	p, err := r.providers.Get(r.cfg, snap.Provider, snap.Model)
	if err != nil {
		return nil, false
	}
	return p, p.CheckConnection(ctx)
}

func stringParam(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// --- search_code -----------------------------------------------------

func (r *Registry) searchCode(ctx context.Context, sess *session.Session, params map[string]any) (string, error) {
	query := stringParam(params, "query")
	if query == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.searchCode", fmt.Errorf("query is required"))
	}

	outcome, err := r.retriever.SearchWithRefinement(ctx, query, retriever.Options{
		Limit:              r.cfg.Search.QdrantSearchLimitDefault,
		MaxRefinements:      r.cfg.Search.MaxRefinementIterations,
		RelevanceThreshold: r.cfg.Search.RelevanceThreshold,
	})
	if err != nil {
		return "", err
	}

	provider, summarize := r.suggestionProvider(ctx)

	text := renderResults(outcome)
	if summarize {
		summary, err := provider.GenerateText(ctx, "Summarize these code search results concisely:\n"+text)
		if err == nil {
			text = summary
		}
	}

	if sess != nil {
		r.sessions.AddQuery(sess, query, resultFilepaths(outcome), outcome.RelevanceScore)
		r.sessions.UpdateContext(sess, resultFilepaths(outcome), sess.Context.LastDiff)
	}

	return text, nil
}

func renderResults(o retriever.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "refined query: %q (relevance %.2f)\n", o.RefinedQuery, o.RelevanceScore)
	for _, res := range o.Results {
		fmt.Fprintf(&b, "- [%.3f] %s\n", res.Score, res.Filepath)
	}
	return b.String()
}

// retrieverOptionsWithElevatedLimit widens the default search limit for
// the MORE_SEARCH_RESULTS branch of request_additional_context.
func retrieverOptionsWithElevatedLimit(r *Registry) retriever.Options {
	return retriever.Options{
		Limit:              r.cfg.Search.QdrantSearchLimitDefault * 3,
		MaxRefinements:     r.cfg.Search.MaxRefinementIterations,
		RelevanceThreshold: r.cfg.Search.RelevanceThreshold,
	}
}

func resultFilepaths(o retriever.Outcome) []string {
	out := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		out = append(out, r.Filepath)
	}
	return out
}

// --- get_repository_context -------------------------------------------

func (r *Registry) getRepositoryContext(ctx context.Context, sess *session.Session, params map[string]any) (string, error) {
	searchText, err := r.searchCode(ctx, sess, params)
	if err != nil {
		return "", err
	}

	diff := gitinspect.RepositoryDiff(r.repoPath, r.cfg.Context.MaxDiffLengthForContextTool)

	var recentText string
	if sess != nil {
		recent := r.sessions.GetRecentQueries(sess, 3)
		var b strings.Builder
		for _, q := range recent {
			fmt.Fprintf(&b, "- %s (relevance %.2f)\n", q.Query, q.RelevanceScore)
		}
		recentText = b.String()

		if provider, available := r.suggestionProvider(ctx); available && recentText != "" {
			if summary, err := provider.GenerateText(ctx, "Summarize this recent-query history:\n"+recentText); err == nil {
				recentText = summary
			}
		}
	}

	return fmt.Sprintf("search:\n%s\nrepository diff:\n%s\nrecent queries:\n%s", searchText, diff, recentText), nil
}

// --- generate_suggestion ----------------------------------------------

func (r *Registry) generateSuggestion(ctx context.Context, sess *session.Session, params map[string]any) (string, error) {
	query := stringParam(params, "query")
	if query == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.generateSuggestion", fmt.Errorf("query is required"))
	}

	provider, available := r.suggestionProvider(ctx)
	if !available {
		return "", apperr.New(apperr.KindValidation, "Registry.generateSuggestion", fmt.Errorf("no suggestion model available"))
	}

	outcome, err := r.retriever.SearchWithRefinement(ctx, query, retriever.Options{
		Limit:              r.cfg.Context.MaxFilesForSuggestionNoSummary,
		MaxRefinements:      r.cfg.Search.MaxRefinementIterations,
		RelevanceThreshold: r.cfg.Search.RelevanceThreshold,
	})
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("Using the following context, answer: %s\n\n%s", query, renderResults(outcome))
	suggestion, err := provider.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}

	if sess != nil {
		r.sessions.AddSuggestion(sess, query, suggestion)
	}
	return suggestion, nil
}

// --- get_changelog -----------------------------------------------------

func (r *Registry) getChangelog(context.Context, *session.Session, map[string]any) (string, error) {
	path := filepath.Join(r.repoPath, "CHANGELOG.md")
	content, err := os.ReadFile(path)
	if err != nil {
		return "No CHANGELOG.md found at the repository root.", nil
	}
	return string(content), nil
}

// --- analyze_code_problem -----------------------------------------------

func (r *Registry) analyzeCodeProblem(ctx context.Context, sess *session.Session, params map[string]any) (string, error) {
	query := stringParam(params, "query")
	if query == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.analyzeCodeProblem", fmt.Errorf("query is required"))
	}

	provider, available := r.suggestionProvider(ctx)
	if !available {
		return "", apperr.New(apperr.KindValidation, "Registry.analyzeCodeProblem", fmt.Errorf("no suggestion model available"))
	}

	outcome, err := r.retriever.SearchWithRefinement(ctx, query, retriever.Options{
		MaxRefinements:     r.cfg.Search.MaxRefinementIterations,
		RelevanceThreshold: r.cfg.Search.RelevanceThreshold,
	})
	if err != nil {
		return "", err
	}

	analysis, err := provider.GenerateText(ctx, "Analyze this problem given the context:\n"+query+"\n\n"+renderResults(outcome))
	if err != nil {
		return "", err
	}

	plan, err := provider.GenerateText(ctx, "Given this analysis, propose an implementation plan:\n"+analysis)
	if err != nil {
		return "", err
	}

	result := fmt.Sprintf("analysis:\n%s\n\nimplementation plan:\n%s", analysis, plan)
	if sess != nil {
		r.sessions.AddSuggestion(sess, query, result)
	}
	return result, nil
}

// --- agent_query ---------------------------------------------------------

func (r *Registry) agentQuery(ctx context.Context, sess *session.Session, params map[string]any) (string, error) {
	if r.agentLoop == nil {
		return "", apperr.New(apperr.KindValidation, "Registry.agentQuery", fmt.Errorf("agent loop is not wired"))
	}
	query := stringParam(params, "query")
	if query == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.agentQuery", fmt.Errorf("query is required"))
	}
	sessionID := ""
	if sess != nil {
		sessionID = sess.ID
	}
	_, available := r.suggestionProvider(ctx)
	return r.agentLoop.Run(ctx, agent.Request{
		Query:                    query,
		SessionID:                sessionID,
		RepoPath:                 r.repoPath,
		SuggestionModelAvailable: available,
	})
}

// --- request_more_processing_steps ---------------------------------------

func (r *Registry) requestMoreProcessingSteps(_ context.Context, _ *session.Session, params map[string]any) (string, error) {
	reasoning := stringParam(params, "reasoning")
	return fmt.Sprintf("acknowledged request for more processing steps: %s", reasoning), nil
}

// --- switch_suggestion_model ---------------------------------------------

func (r *Registry) switchSuggestionModel(ctx context.Context, _ *session.Session, params map[string]any) (string, error) {
	model := stringParam(params, "model")
	if model == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.switchSuggestionModel", fmt.Errorf("model is required"))
	}
	provider := stringParam(params, "provider")

	r.cfg.SwitchSuggestionModel(provider, model)
	r.providers.ClearCache()

	snap := r.cfg.CurrentSuggestion()
	p, err := r.providers.Get(r.cfg, snap.Provider, snap.Model)
	if err != nil {
		return fmt.Sprintf("switched to provider=%s model=%s, but construction failed: %v", snap.Provider, snap.Model, err), nil
	}
	if !p.CheckConnection(ctx) {
		return fmt.Sprintf("switched to provider=%s model=%s, but the provider is unreachable (check its API key/URL)", snap.Provider, snap.Model), nil
	}
	return fmt.Sprintf("switched to provider=%s model=%s", snap.Provider, snap.Model), nil
}

// --- get_indexing_status --------------------------------------------------

func (r *Registry) getIndexingStatus(context.Context, *session.Session, map[string]any) (string, error) {
	snap := r.tracker.Snapshot()
	return fmt.Sprintf("phase=%s files=%d/%d commits=%d error=%q",
		snap.Phase, snap.FilesIndexed, snap.FilesTotal, snap.CommitsIndexed, snap.Error), nil
}

// --- trigger_repository_update ---------------------------------------------

func (r *Registry) triggerRepositoryUpdate(ctx context.Context, _ *session.Session, _ map[string]any) (string, error) {
	if r.tracker.IsActive() {
		return "", apperr.New(apperr.KindBusy, "Registry.triggerRepositoryUpdate", fmt.Errorf("an indexing run is already active"))
	}
	go func() {
		if err := r.pipeline.Run(context.Background(), r.repoPath); err != nil {
			_ = err // recorded on the tracker; nothing further to do here
		}
	}()
	return "indexing run started", nil
}
