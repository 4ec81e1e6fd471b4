// Package status tracks the process-wide state of the most recent (or
// in-progress) repository indexing run, exposed to both the MCP resources
// and the utility HTTP endpoints.
package status

import (
	"sync"
	"time"
)

// Phase is one step of an indexing run.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseInitializing         Phase = "initializing"
	PhaseValidatingRepo       Phase = "validating_repo"
	PhaseListingFiles         Phase = "listing_files"
	PhaseCleaningStaleEntries Phase = "cleaning_stale_entries"
	PhaseIndexingFileContent  Phase = "indexing_file_content"
	PhaseIndexingCommitsDiffs Phase = "indexing_commits_diffs"
	PhaseCompleted            Phase = "completed"
	PhaseFailed               Phase = "failed"
)

// Snapshot is an immutable copy of the indexing status at a point in time.
type Snapshot struct {
	Phase           Phase
	FilesTotal      int
	FilesIndexed    int
	CommitsIndexed  int
	StartedAt       time.Time
	LastUpdatedAt   time.Time
	Error           string
}

// Tracker is a mutex-guarded, process-global indexing status. The zero
// value is ready to use in PhaseIdle.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker returns a Tracker starting in PhaseIdle.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Phase: PhaseIdle}}
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Begin transitions to PhaseInitializing and resets counters, recording
// the start time. Returns false without mutating state if a run is
// already in progress (anything other than idle/completed/failed).
func (t *Tracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active() {
		return false
	}
	t.snap = Snapshot{Phase: PhaseInitializing, StartedAt: now(), LastUpdatedAt: now()}
	return true
}

func (t *Tracker) active() bool {
	switch t.snap.Phase {
	case PhaseIdle, PhaseCompleted, PhaseFailed:
		return false
	default:
		return true
	}
}

// SetPhase transitions to phase without altering counters.
func (t *Tracker) SetPhase(phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = phase
	t.snap.LastUpdatedAt = now()
}

// SetFilesTotal records the number of files discovered to index.
func (t *Tracker) SetFilesTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.FilesTotal = n
	t.snap.LastUpdatedAt = now()
}

// IncFilesIndexed bumps the indexed-file counter by delta.
func (t *Tracker) IncFilesIndexed(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.FilesIndexed += delta
	t.snap.LastUpdatedAt = now()
}

// IncCommitsIndexed bumps the indexed-commit counter by delta.
func (t *Tracker) IncCommitsIndexed(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.CommitsIndexed += delta
	t.snap.LastUpdatedAt = now()
}

// Complete transitions to PhaseCompleted.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = PhaseCompleted
	t.snap.LastUpdatedAt = now()
}

// Fail transitions to PhaseFailed and records err's message.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = PhaseFailed
	t.snap.LastUpdatedAt = now()
	if err != nil {
		t.snap.Error = err.Error()
	}
}

// IsActive reports whether an indexing run is currently underway.
func (t *Tracker) IsActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active()
}

func now() time.Time { return time.Now().UTC() }
