package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateRequiresRepoPathForNewSession(t *testing.T) {
	s := New()
	_, err := s.GetOrCreate("", "")
	assert.Error(t, err)
}

func TestGetOrCreateReturnsSameSessionForSameID(t *testing.T) {
	s := New()
	sess, err := s.GetOrCreate("", "/repo")
	require.NoError(t, err)

	again, err := s.GetOrCreate(sess.ID, "")
	require.NoError(t, err)
	assert.Same(t, sess, again)
}

func TestAddFeedbackErrorsWithoutSuggestion(t *testing.T) {
	s := New()
	sess, err := s.GetOrCreate("", "/repo")
	require.NoError(t, err)

	err = s.AddFeedback(sess, "too verbose")
	assert.Error(t, err)
}

func TestAddFeedbackAttachesToMostRecentSuggestion(t *testing.T) {
	s := New()
	sess, err := s.GetOrCreate("", "/repo")
	require.NoError(t, err)

	s.AddSuggestion(sess, "prompt1", "suggestion1")
	s.AddSuggestion(sess, "prompt2", "suggestion2")
	require.NoError(t, s.AddFeedback(sess, "make it shorter"))

	assert.Empty(t, sess.Suggestions[0].Feedback)
	assert.Equal(t, "make it shorter", sess.Suggestions[1].Feedback)
}

func TestGetRecentQueriesReturnsNewestFirst(t *testing.T) {
	s := New()
	sess, err := s.GetOrCreate("", "/repo")
	require.NoError(t, err)

	s.AddQuery(sess, "first", nil, 0.1)
	s.AddQuery(sess, "second", nil, 0.2)
	s.AddQuery(sess, "third", nil, 0.3)

	recent := s.GetRecentQueries(sess, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Query)
	assert.Equal(t, "second", recent[1].Query)
}

func TestGetRelevantResultsSortsByScoreDescending(t *testing.T) {
	s := New()
	sess, err := s.GetOrCreate("", "/repo")
	require.NoError(t, err)

	s.AddQuery(sess, "low", []string{"low-result"}, 0.1)
	s.AddQuery(sess, "high", []string{"high-result"}, 0.9)

	results := s.GetRelevantResults(sess, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "high-result", results[0])
}

func TestGetAverageRelevanceScore(t *testing.T) {
	s := New()
	sess, err := s.GetOrCreate("", "/repo")
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.GetAverageRelevanceScore(sess))

	s.AddQuery(sess, "a", nil, 0.2)
	s.AddQuery(sess, "b", nil, 0.8)
	assert.InDelta(t, 0.5, s.GetAverageRelevanceScore(sess), 1e-9)
}
