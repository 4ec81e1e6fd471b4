package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codecompass/codecompass-go/internal/apperr"
	"github.com/codecompass/codecompass-go/internal/session"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
)

const (
	contextMoreSearchResults  = "MORE_SEARCH_RESULTS"
	contextFullFileContent    = "FULL_FILE_CONTENT"
	contextDirectoryListing   = "DIRECTORY_LISTING"
	contextAdjacentFileChunks = "ADJACENT_FILE_CHUNKS"

	directoryListingCap  = 50
	fullFileSummaryLimit = 8000
)

func (r *Registry) requestAdditionalContext(ctx context.Context, sess *session.Session, params map[string]any) (string, error) {
	contextType := stringParam(params, "context_type")
	target := stringParam(params, "query_or_path")

	switch contextType {
	case contextMoreSearchResults:
		return r.moreSearchResults(ctx, sess, target)
	case contextFullFileContent:
		return r.fullFileContent(ctx, target)
	case contextDirectoryListing:
		return r.directoryListing(target)
	case contextAdjacentFileChunks:
		idx, _ := intParam(params, "chunk_index")
		return r.adjacentFileChunks(ctx, target, idx)
	default:
		return "", apperr.New(apperr.KindValidation, "Registry.requestAdditionalContext",
			fmt.Errorf("unknown context_type %q", contextType))
	}
}

func (r *Registry) moreSearchResults(ctx context.Context, sess *session.Session, query string) (string, error) {
	if query == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.moreSearchResults", fmt.Errorf("query_or_path is required"))
	}
	outcome, err := r.retriever.SearchWithRefinement(ctx, query, retrieverOptionsWithElevatedLimit(r))
	if err != nil {
		return "", err
	}
	if sess != nil {
		r.sessions.AddQuery(sess, query, resultFilepaths(outcome), outcome.RelevanceScore)
	}
	return renderResults(outcome), nil
}

// resolveRepoPath cleans and resolves path within the repository root,
// rejecting traversal attempts and symlink targets that escape it.
func (r *Registry) resolveRepoPath(relPath string) (string, error) {
	if relPath == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.resolveRepoPath", fmt.Errorf("query_or_path is required"))
	}

	cleaned := filepath.Clean(relPath)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", apperr.New(apperr.KindValidation, "Registry.resolveRepoPath", fmt.Errorf("path escapes the repository root: %s", relPath))
	}

	full := filepath.Join(r.repoPath, cleaned)

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		resolved = full
	}

	repoResolved, err := filepath.EvalSymlinks(r.repoPath)
	if err != nil {
		repoResolved = r.repoPath
	}

	rel, err := filepath.Rel(repoResolved, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.New(apperr.KindValidation, "Registry.resolveRepoPath", fmt.Errorf("path escapes the repository root: %s", relPath))
	}

	return full, nil
}

func (r *Registry) fullFileContent(ctx context.Context, relPath string) (string, error) {
	full, err := r.resolveRepoPath(relPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", apperr.New(apperr.KindValidation, "Registry.fullFileContent", fmt.Errorf("cannot stat %s: %w", relPath, err))
	}
	if info.IsDir() {
		return "", apperr.New(apperr.KindValidation, "Registry.fullFileContent", fmt.Errorf("%s is a directory, not a file", relPath))
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return "", apperr.New(apperr.KindValidation, "Registry.fullFileContent", fmt.Errorf("reading %s: %w", relPath, err))
	}

	text := string(content)
	if len(text) <= fullFileSummaryLimit {
		return text, nil
	}

	if provider, available := r.suggestionProvider(ctx); available {
		summary, err := provider.GenerateText(ctx, "Summarize this file's contents:\n"+text)
		if err == nil {
			return summary, nil
		}
	}

	return text[:fullFileSummaryLimit] + "\n... (truncated)", nil
}

func (r *Registry) directoryListing(relPath string) (string, error) {
	full, err := r.resolveRepoPath(relPath)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return "", apperr.New(apperr.KindValidation, "Registry.directoryListing", fmt.Errorf("reading directory %s: %w", relPath, err))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	truncated := len(entries) > directoryListingCap
	if truncated {
		entries = entries[:directoryListingCap]
	}
	for _, e := range entries {
		tag := "file"
		if e.IsDir() {
			tag = "dir"
		}
		fmt.Fprintf(&b, "%s\t%s\n", tag, e.Name())
	}
	if truncated {
		fmt.Fprintf(&b, "... (truncated to %d entries)\n", directoryListingCap)
	}
	return b.String(), nil
}

func (r *Registry) adjacentFileChunks(ctx context.Context, relPath string, chunkIndex int) (string, error) {
	if relPath == "" {
		return "", apperr.New(apperr.KindValidation, "Registry.adjacentFileChunks", fmt.Errorf("query_or_path is required"))
	}

	filter := &vectorstore.Filter{
		Fields:    map[string]string{"data_type": "file_chunk"},
		Filepaths: []string{relPath},
	}
	points, _, err := r.store.Scroll(ctx, filter, 1000, nil)
	if err != nil {
		return "", err
	}

	wanted := map[int]bool{chunkIndex - 1: true, chunkIndex + 1: true}
	found := make(map[int]string)
	for _, p := range points {
		if p.Payload.Type != vectorstore.DataTypeFileChunk {
			continue
		}
		idx := p.Payload.File.ChunkIndex
		if wanted[idx] {
			found[idx] = p.Payload.File.FileContentChunk
		}
	}

	var b strings.Builder
	for _, idx := range []int{chunkIndex - 1, chunkIndex + 1} {
		if text, ok := found[idx]; ok {
			fmt.Fprintf(&b, "chunk %d:\n%s\n", idx, text)
		} else {
			fmt.Fprintf(&b, "chunk %d: not found\n", idx)
		}
	}
	return b.String(), nil
}
