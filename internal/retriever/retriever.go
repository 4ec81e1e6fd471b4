// Package retriever performs vector search with bounded, adaptive query
// refinement: broadening an over-specific query, focusing an under-specific
// one, or tweaking a query that is already close to the relevance
// threshold.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/textutil"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
)

// Result is one search hit, flattened from a vectorstore.SearchResult for
// callers that don't need the full Point/Payload shape.
type Result struct {
	Score    float64
	Payload  vectorstore.Payload
	Filepath string
}

// Outcome is the return value of SearchWithRefinement.
type Outcome struct {
	Results        []Result
	RefinedQuery   string
	RelevanceScore float64
}

// Retriever couples a VectorStore with an embedding Provider to run
// single-shot searches and the iterative refinement loop on top of them.
type Retriever struct {
	store    vectorstore.VectorStore
	embedder llm.Provider
}

// New builds a Retriever.
func New(store vectorstore.VectorStore, embedder llm.Provider) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Options bounds a SearchWithRefinement call.
type Options struct {
	Files              []string
	Limit              int
	MaxRefinements     int
	RelevanceThreshold float64
}

const defaultRelevanceThreshold = 0.7

// SearchWithRefinement runs the bounded refinement loop described by the
// component's design: at each step it embeds the current query, searches,
// tracks the best-scoring attempt seen so far, and either stops (threshold
// reached, iteration budget exhausted, or the refinement reached a
// fixpoint) or refines the query for another pass.
func (r *Retriever) SearchWithRefinement(ctx context.Context, query string, opts Options) (Outcome, error) {
	threshold := opts.RelevanceThreshold
	if threshold <= 0 {
		threshold = defaultRelevanceThreshold
	}
	maxRefinements := opts.MaxRefinements
	if maxRefinements < 0 {
		maxRefinements = 0
	}

	current := query
	var best []vectorstore.SearchResult
	bestScore := 0.0
	finalQuery := current

	for i := 0; i <= maxRefinements; i++ {
		results, avg, err := r.searchOnce(ctx, current, opts)
		if err != nil {
			return Outcome{}, err
		}

		if avg > bestScore {
			best = results
			bestScore = avg
		}
		finalQuery = current

		if avg >= threshold || i == maxRefinements {
			break
		}

		next := refine(current, results, avg)
		if next == current && len(results) > 0 {
			break
		}
		current = next
	}

	return Outcome{
		Results:        toResults(best),
		RefinedQuery:   finalQuery,
		RelevanceScore: bestScore,
	}, nil
}

func (r *Retriever) searchOnce(ctx context.Context, query string, opts Options) ([]vectorstore.SearchResult, float64, error) {
	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("retriever: embedding query: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var filter *vectorstore.Filter
	if len(opts.Files) > 0 {
		filter = &vectorstore.Filter{Filepaths: opts.Files}
	}

	results, err := r.store.Search(ctx, vec, limit, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("retriever: searching: %w", err)
	}

	return results, meanScore(results), nil
}

func meanScore(results []vectorstore.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}

func toResults(sr []vectorstore.SearchResult) []Result {
	out := make([]Result, 0, len(sr))
	for _, s := range sr {
		out = append(out, Result{Score: s.Score, Payload: s.Point.Payload, Filepath: payloadFilepath(s.Point.Payload)})
	}
	return out
}

func payloadFilepath(p vectorstore.Payload) string {
	switch p.Type {
	case vectorstore.DataTypeFileChunk:
		return p.File.Filepath
	case vectorstore.DataTypeDiffChunk:
		return p.Diff.Filepath
	default:
		return ""
	}
}

// refine implements the three-way branch: broaden an unfocused query,
// focus a moderately-relevant one around its own top hits, or tweak a
// near-threshold query with a single disambiguating token.
func refine(query string, results []vectorstore.SearchResult, avg float64) string {
	switch {
	case avg < 0.3 || len(results) == 0:
		return broaden(query)
	case avg < 0.7:
		return focus(query, results)
	default:
		return tweak(query, results)
	}
}

var specificityTokens = []string{`"`, "'", "(", ")", "[", "]", "{", "}"}

// broaden strips quoting/bracketing punctuation and source-extension
// tokens (".go", ".py", ...) that narrow a query too aggressively,
// appending a generic term if the result would otherwise be too short to
// search meaningfully.
func broaden(query string) string {
	out := query
	for _, tok := range specificityTokens {
		out = strings.ReplaceAll(out, tok, " ")
	}

	fields := strings.Fields(out)
	kept := fields[:0]
	for _, f := range fields {
		if dot := strings.LastIndexByte(f, '.'); dot >= 0 && (dot == 0 || len(f)-dot-1 <= 4) {
			continue
		}
		kept = append(kept, f)
	}
	out = strings.Join(kept, " ")
	out = strings.TrimSpace(out)

	if len([]rune(out)) < 3 {
		out = strings.TrimSpace(out + " implementation code")
	}

	return out
}

// focus extracts keywords from the top 3 results' text content and
// appends the top two that are not already present in the query.
func focus(query string, results []vectorstore.SearchResult) string {
	n := len(results)
	if n > 3 {
		n = 3
	}

	existing := make(map[string]struct{})
	for _, w := range textutil.ExtractKeywords(query) {
		existing[w] = struct{}{}
	}

	var candidates []string
	seen := make(map[string]struct{})
	for _, r := range results[:n] {
		for _, kw := range textutil.ExtractKeywords(payloadText(r.Point.Payload)) {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			if _, already := existing[kw]; already {
				continue
			}
			candidates = append(candidates, kw)
		}
	}

	if len(candidates) > 2 {
		candidates = candidates[:2]
	}
	if len(candidates) == 0 {
		return query
	}

	return strings.TrimSpace(query + " " + strings.Join(candidates, " "))
}

// tweak appends the file type or top-level directory of the best hit, if
// not already present in the query, to disambiguate a query that is
// already close to the relevance threshold.
func tweak(query string, results []vectorstore.SearchResult) string {
	if len(results) == 0 {
		return query
	}
	fp := payloadFilepath(results[0].Point.Payload)
	if fp == "" {
		return query
	}

	hint := topLevelDir(fp)
	if hint == "" {
		hint = extensionHint(fp)
	}
	if hint == "" || strings.Contains(strings.ToLower(query), strings.ToLower(hint)) {
		return query
	}

	return strings.TrimSpace(query + " " + hint)
}

func topLevelDir(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func extensionHint(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx+1:]
}

func payloadText(p vectorstore.Payload) string {
	switch p.Type {
	case vectorstore.DataTypeFileChunk:
		return p.File.FileContentChunk
	case vectorstore.DataTypeDiffChunk:
		return p.Diff.DiffChunk
	case vectorstore.DataTypeCommitInfo:
		return p.Commit.CommitMessage
	default:
		return ""
	}
}
