// Package pipeline orchestrates a full repository indexing run: stale
// vector pruning, file-chunk embedding, and commit/diff embedding, each
// step publishing progress to a status.Tracker.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codecompass/codecompass-go/internal/apperr"
	"github.com/codecompass/codecompass-go/internal/filecache"
	"github.com/codecompass/codecompass-go/internal/gitinspect"
	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/metrics"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/textutil"
	"github.com/codecompass/codecompass-go/internal/vectorstore"
	"github.com/codecompass/codecompass-go/pkg/config"
	"github.com/codecompass/codecompass-go/pkg/ignore"
)

// Pipeline runs one repository indexing pass at a time. Concurrency is
// gated entirely by tracker's Begin/active-phase bookkeeping, since a
// second Pipeline.Run call must observe the same "busy" state a status
// reader would.
type Pipeline struct {
	cfg      *config.Config
	store    vectorstore.VectorStore
	embedder llm.Provider
	tracker  *status.Tracker
	metrics  *metrics.Collector
}

// New builds a Pipeline. embedder is used only for GenerateEmbedding.
func New(cfg *config.Config, store vectorstore.VectorStore, embedder llm.Provider, tracker *status.Tracker) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, embedder: embedder, tracker: tracker}
}

// WithMetrics attaches a Collector that observes every Run's outcome and
// duration. Passing a nil Collector disables observation.
func (p *Pipeline) WithMetrics(c *metrics.Collector) *Pipeline {
	p.metrics = c
	return p
}

// Run executes one full indexing pass over repoPath. It returns
// apperr.KindBusy if another run is already active.
func (p *Pipeline) Run(ctx context.Context, repoPath string) error {
	if !p.tracker.Begin() {
		return apperr.New(apperr.KindBusy, "Pipeline.Run", fmt.Errorf("an indexing run is already active"))
	}

	started := time.Now()
	err := p.run(ctx, repoPath)
	if p.metrics != nil {
		p.metrics.ObserveIndexingRun(err, time.Since(started))
	}

	if err != nil {
		p.tracker.Fail(err)
		return err
	}

	p.tracker.Complete()
	return nil
}

func (p *Pipeline) run(ctx context.Context, repoPath string) error {
	p.tracker.SetPhase(status.PhaseValidatingRepo)
	if !gitinspect.ValidateRepository(repoPath) {
		return apperr.New(apperr.KindValidation, "Pipeline.run", fmt.Errorf("%s is not a valid Git repository", repoPath))
	}

	inspector, err := gitinspect.Open(repoPath)
	if err != nil {
		return err
	}

	if err := p.store.Initialize(ctx, p.cfg.Embeddings.Dimension, p.cfg.VectorDB.DistanceMetric); err != nil {
		return err
	}

	p.tracker.SetPhase(status.PhaseListingFiles)
	allFiles, err := inspector.ListFiles()
	if err != nil {
		return err
	}

	matcher := ignore.NewMatcher(append(p.cfg.Ignore.Patterns, "node_modules/**", "dist/**"))
	allowlist := ignore.NewAllowlist(p.cfg.Ignore.Extensions)

	var files []string
	for _, f := range allFiles {
		if matcher.ShouldIgnore(f) || !allowlist.Allowed(f) {
			continue
		}
		files = append(files, f)
	}
	p.tracker.SetFilesTotal(len(files))

	cache, err := filecache.Open(p.cfg.Cache.Directory, repoPath)
	if err != nil {
		slog.Warn("pipeline: file hash cache unavailable, indexing every file unconditionally", "error", err)
		cache = nil
	}

	if err := p.pruneStale(ctx, files, cache); err != nil {
		return err
	}

	if err := p.indexFiles(ctx, repoPath, files, cache); err != nil {
		return err
	}

	if cache != nil {
		if err := cache.Save(); err != nil {
			slog.Warn("pipeline: failed to persist file hash cache", "error", err)
		}
	}

	if err := p.indexCommits(ctx, repoPath, inspector); err != nil {
		return err
	}

	return nil
}

// pruneStale deletes every file_chunk point whose filepath is no longer
// present among the current file list. Commit/diff entries are historical
// and are never pruned.
func (p *Pipeline) pruneStale(ctx context.Context, currentFiles []string, cache *filecache.Cache) error {
	p.tracker.SetPhase(status.PhaseCleaningStaleEntries)

	current := make(map[string]struct{}, len(currentFiles))
	for _, f := range currentFiles {
		current[f] = struct{}{}
	}

	var toDelete []string
	var staleFiles []string
	var offset *string
	filter := &vectorstore.Filter{Fields: map[string]string{"data_type": "file_chunk"}}

	for {
		points, next, err := p.store.Scroll(ctx, filter, 200, offset)
		if err != nil {
			return err
		}
		for _, pt := range points {
			if pt.Payload.File == nil {
				continue
			}
			if _, ok := current[pt.Payload.File.Filepath]; !ok {
				toDelete = append(toDelete, pt.ID)
				staleFiles = append(staleFiles, pt.Payload.File.Filepath)
			}
		}
		if next == nil {
			break
		}
		offset = next
	}

	if cache != nil {
		for _, f := range staleFiles {
			cache.Forget(f)
		}
	}

	if len(toDelete) == 0 {
		return nil
	}

	slog.Info("pruning stale file-chunk entries", "count", len(toDelete))
	return p.store.Delete(ctx, toDelete)
}

// indexFiles chunks and embeds every allowed file whose content hash has
// changed since the last run (per cache, when available), buffering points
// and flushing in QDRANT_BATCH_UPSERT_SIZE-sized batches.
func (p *Pipeline) indexFiles(ctx context.Context, repoPath string, files []string, cache *filecache.Cache) error {
	p.tracker.SetPhase(status.PhaseIndexingFileContent)

	workers := p.cfg.Indexing.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	var buffer []vectorstore.Point

	flush := func() error {
		mu.Lock()
		batch := buffer
		buffer = nil
		mu.Unlock()
		if len(batch) == 0 {
			return nil
		}
		return p.store.BatchUpsert(ctx, batch, p.cfg.Indexing.QdrantBatchUpsertSize)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			fullPath := filepath.Join(repoPath, relPath)

			if cache != nil {
				needsReindex, err := cache.NeedsReindex(relPath, fullPath)
				if err == nil && !needsReindex {
					p.tracker.IncFilesIndexed(1)
					if p.metrics != nil {
						p.metrics.IndexingFilesIndexed.Inc()
					}
					return nil
				}
			}

			points, err := p.fileChunkPoints(gctx, repoPath, relPath)
			if err != nil {
				slog.Warn("skipping file during indexing", "file", relPath, "error", err)
				p.tracker.IncFilesIndexed(1)
				return nil
			}

			mu.Lock()
			buffer = append(buffer, points...)
			shouldFlush := len(buffer) >= p.cfg.Indexing.QdrantBatchUpsertSize
			mu.Unlock()

			if cache != nil {
				if err := cache.Record(relPath, fullPath, len(points)); err != nil {
					slog.Warn("pipeline: failed to record file hash", "file", relPath, "error", err)
				}
			}

			p.tracker.IncFilesIndexed(1)
			if p.metrics != nil {
				p.metrics.IndexingFilesIndexed.Inc()
			}

			if shouldFlush {
				return flush()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return apperr.New(apperr.KindTransport, "Pipeline.indexFiles", err)
	}

	return flush()
}

func (p *Pipeline) fileChunkPoints(ctx context.Context, repoPath, relPath string) ([]vectorstore.Point, error) {
	fullPath := filepath.Join(repoPath, relPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	chunks := textutil.Chunk(string(content), p.cfg.Chunking.FileChunkSizeChars, p.cfg.Chunking.FileChunkOverlapChars)

	var points []vectorstore.Point
	for idx, chunk := range chunks {
		if textutil.Preprocess(chunk) == "" {
			continue
		}

		vec, err := p.embedder.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embedding %s chunk %d: %w", relPath, idx, err)
		}

		logicalID := fmt.Sprintf("file:%s:chunk:%d", textutil.Preprocess(relPath), idx)
		points = append(points, vectorstore.Point{
			ID:     vectorstore.PointID(logicalID),
			Vector: vec,
			Payload: vectorstore.NewFileChunkPayload(vectorstore.FileChunkPayload{
				Filepath:         relPath,
				FileContentChunk: chunk,
				LastModified:     info.ModTime().UTC().Format(time.RFC3339),
				ChunkIndex:       idx,
				TotalChunks:      len(chunks),
				RepositoryPath:   repoPath,
			}),
		})
	}

	return points, nil
}

// indexCommits embeds up to COMMIT_HISTORY_MAX_COUNT_FOR_INDEXING newest
// commits and their per-file diffs.
func (p *Pipeline) indexCommits(ctx context.Context, repoPath string, inspector *gitinspect.Inspector) error {
	p.tracker.SetPhase(status.PhaseIndexingCommitsDiffs)

	commits, err := inspector.CommitHistory(gitinspect.HistoryOptions{
		Count: p.cfg.Indexing.CommitHistoryMaxCountForIndex,
	}, p.cfg.Indexing.DiffLinesOfContext)
	if err != nil {
		return err
	}

	var buffer []vectorstore.Point
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		err := p.store.BatchUpsert(ctx, buffer, p.cfg.Indexing.QdrantBatchUpsertSize)
		buffer = nil
		return err
	}

	for _, c := range commits {
		commitText := fmt.Sprintf("%s\n\n%s", c.Message, changedFilesSummaryText(c.ChangedFiles))
		vec, err := p.embedder.GenerateEmbedding(ctx, commitText)
		if err != nil {
			slog.Warn("skipping commit embedding", "commit", c.OID, "error", err)
		} else {
			buffer = append(buffer, vectorstore.Point{
				ID:     vectorstore.PointID("commit:" + c.OID),
				Vector: vec,
				Payload: vectorstore.NewCommitInfoPayload(vectorstore.CommitInfoPayload{
					CommitOID:           c.OID,
					CommitMessage:       c.Message,
					CommitAuthorName:    c.AuthorName,
					CommitAuthorEmail:   c.AuthorEmail,
					CommitDate:          c.Date,
					ChangedFilesSummary: changedFilesSummaryList(c.ChangedFiles),
					ParentOIDs:          c.Parents,
					RepositoryPath:      repoPath,
				}),
			})
		}

		for _, cf := range c.ChangedFiles {
			if cf.Diff == "" {
				continue
			}
			diffChunks := textutil.Chunk(cf.Diff, p.cfg.Chunking.DiffChunkSizeChars, p.cfg.Chunking.DiffChunkOverlapChars)
			for idx, chunk := range diffChunks {
				vec, err := p.embedder.GenerateEmbedding(ctx, chunk)
				if err != nil {
					slog.Warn("skipping diff chunk embedding", "commit", c.OID, "file", cf.Path, "error", err)
					continue
				}
				logicalID := fmt.Sprintf("diff:%s:%s:chunk:%d", c.OID, textutil.Preprocess(cf.Path), idx)
				buffer = append(buffer, vectorstore.Point{
					ID:     vectorstore.PointID(logicalID),
					Vector: vec,
					Payload: vectorstore.NewDiffChunkPayload(vectorstore.DiffChunkPayload{
						CommitOID:      c.OID,
						Filepath:       cf.Path,
						DiffChunk:      chunk,
						ChunkIndex:     idx,
						TotalChunks:    len(diffChunks),
						ChangeType:     vectorstore.ChangeType(cf.ChangeType),
						RepositoryPath: repoPath,
					}),
				})
			}
		}

		p.tracker.IncCommitsIndexed(1)
		if p.metrics != nil {
			p.metrics.IndexingCommitsIndexed.Inc()
		}
		if len(buffer) >= p.cfg.Indexing.QdrantBatchUpsertSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func changedFilesSummaryList(files []gitinspect.ChangedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, fmt.Sprintf("%s %s", f.ChangeType, f.Path))
	}
	return out
}

func changedFilesSummaryText(files []gitinspect.ChangedFile) string {
	var b []byte
	for _, line := range changedFilesSummaryList(files) {
		b = append(b, line+"\n"...)
	}
	return string(b)
}
