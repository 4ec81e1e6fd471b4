// Package session tracks per-client conversational state in memory: the
// queries issued, suggestions generated, and feedback given, scoped to a
// single repository path for the process's lifetime.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codecompass/codecompass-go/internal/apperr"
)

// QueryRecord is one search or retrieval-augmented query within a session.
type QueryRecord struct {
	Timestamp      time.Time
	Query          string
	Results        []string
	RelevanceScore float64
}

// SuggestionRecord is one generated suggestion and, once given, the
// feedback attached to it.
type SuggestionRecord struct {
	Timestamp  time.Time
	Prompt     string
	Suggestion string
	Feedback   string
}

// Context is the repository-scoped working state of a Session.
type Context struct {
	RepoPath string
	LastFiles []string
	LastDiff  string
}

// Session is the full conversational and contextual state for one client.
type Session struct {
	ID          string
	CreatedAt   time.Time
	LastUpdated time.Time
	Context     Context
	Queries     []QueryRecord
	Suggestions []SuggestionRecord

	mu sync.Mutex
}

func newID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// Store is an in-memory, concurrency-safe mapping from session id to
// Session. The map itself supports concurrent lookup; mutations to a
// given Session are serialized via that Session's own mutex so a
// caller's addQuery/addSuggestion/addFeedback calls never interleave.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the Session for id if it exists, else creates one.
// Creating a new session requires repoPath; an empty id generates a fresh
// session id.
func (s *Store) GetOrCreate(id, repoPath string) (*Session, error) {
	if id != "" {
		s.mu.RLock()
		existing, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}
	}

	if repoPath == "" {
		return nil, apperr.New(apperr.KindValidation, "Store.GetOrCreate",
			fmt.Errorf("creating a new session requires a repository path"))
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:          id,
		CreatedAt:   now,
		LastUpdated: now,
		Context:     Context{RepoPath: repoPath},
	}
	if sess.ID == "" {
		sess.ID = newID()
	}

	s.mu.Lock()
	if existing, ok := s.sessions[sess.ID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

// Get returns the Session for id, or false if none exists.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// AddQuery records a query and its results against sess.
func (s *Store) AddQuery(sess *Session, query string, results []string, relevanceScore float64) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Queries = append(sess.Queries, QueryRecord{
		Timestamp:      time.Now().UTC(),
		Query:          query,
		Results:        results,
		RelevanceScore: relevanceScore,
	})
	sess.LastUpdated = time.Now().UTC()
}

// AddSuggestion records a generated suggestion against sess.
func (s *Store) AddSuggestion(sess *Session, prompt, suggestion string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Suggestions = append(sess.Suggestions, SuggestionRecord{
		Timestamp:  time.Now().UTC(),
		Prompt:     prompt,
		Suggestion: suggestion,
	})
	sess.LastUpdated = time.Now().UTC()
}

// AddFeedback attaches feedback to the most recently generated
// suggestion. It errors if sess has no suggestions yet.
func (s *Store) AddFeedback(sess *Session, feedback string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.Suggestions) == 0 {
		return apperr.New(apperr.KindValidation, "Store.AddFeedback",
			fmt.Errorf("session %s has no suggestion to attach feedback to", sess.ID))
	}
	sess.Suggestions[len(sess.Suggestions)-1].Feedback = feedback
	sess.LastUpdated = time.Now().UTC()
	return nil
}

// UpdateContext replaces sess's working context.
func (s *Store) UpdateContext(sess *Session, lastFiles []string, lastDiff string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Context.LastFiles = lastFiles
	sess.Context.LastDiff = lastDiff
	sess.LastUpdated = time.Now().UTC()
}

// GetRecentQueries returns the n most recent queries, newest first.
func (s *Store) GetRecentQueries(sess *Session, n int) []QueryRecord {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	total := len(sess.Queries)
	if n <= 0 || n > total {
		n = total
	}

	out := make([]QueryRecord, n)
	for i := 0; i < n; i++ {
		out[i] = sess.Queries[total-1-i]
	}
	return out
}

// GetRelevantResults returns the results of the n queries with the
// highest relevance score, flattened into a single slice.
func (s *Store) GetRelevantResults(sess *Session, n int) []string {
	sess.mu.Lock()
	queries := append([]QueryRecord(nil), sess.Queries...)
	sess.mu.Unlock()

	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].RelevanceScore > queries[j].RelevanceScore
	})

	if n <= 0 || n > len(queries) {
		n = len(queries)
	}

	var out []string
	for _, q := range queries[:n] {
		out = append(out, q.Results...)
	}
	return out
}

// GetAverageRelevanceScore returns the mean relevance score across all
// queries in sess, or 0 if it has none.
func (s *Store) GetAverageRelevanceScore(sess *Session) float64 {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.Queries) == 0 {
		return 0
	}
	var sum float64
	for _, q := range sess.Queries {
		sum += q.RelevanceScore
	}
	return sum / float64(len(sess.Queries))
}
