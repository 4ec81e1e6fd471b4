package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileChunkPayloadRoundTrip(t *testing.T) {
	original := NewFileChunkPayload(FileChunkPayload{
		Filepath:         "src/main.go",
		FileContentChunk: "package main",
		LastModified:     "2026-07-30T00:00:00Z",
		ChunkIndex:       2,
		TotalChunks:      5,
		RepositoryPath:   "/repo",
	})

	qv := toQdrantPayload(original)
	restored, ok := fromQdrantPayload(qv)
	require.True(t, ok)
	assert.Equal(t, original, restored)
}

func TestCommitInfoPayloadRoundTrip(t *testing.T) {
	original := NewCommitInfoPayload(CommitInfoPayload{
		CommitOID:           "abc123",
		CommitMessage:       "fix bug",
		CommitAuthorName:    "Dev",
		CommitAuthorEmail:   "dev@example.com",
		CommitDate:          "2026-07-29T00:00:00Z",
		ChangedFilesSummary: []string{"a.go modified", "b.go added"},
		ParentOIDs:          []string{"def456"},
		RepositoryPath:      "/repo",
	})

	qv := toQdrantPayload(original)
	restored, ok := fromQdrantPayload(qv)
	require.True(t, ok)
	assert.Equal(t, original, restored)
}

func TestDiffChunkPayloadRoundTrip(t *testing.T) {
	original := NewDiffChunkPayload(DiffChunkPayload{
		CommitOID:      "abc123",
		Filepath:       "src/main.go",
		DiffChunk:      "+added line",
		ChunkIndex:     0,
		TotalChunks:    1,
		ChangeType:     ChangeAdd,
		RepositoryPath: "/repo",
	})

	qv := toQdrantPayload(original)
	restored, ok := fromQdrantPayload(qv)
	require.True(t, ok)
	assert.Equal(t, original, restored)
}

func TestFromQdrantPayloadUnknownDataTypeSkipped(t *testing.T) {
	_, ok := fromQdrantPayload(map[string]*qdrant.Value{
		dataTypeKey: qdrant.NewValueString("something_else"),
	})
	assert.False(t, ok)
}

func TestFromQdrantPayloadMissingDataTypeSkipped(t *testing.T) {
	_, ok := fromQdrantPayload(map[string]*qdrant.Value{})
	assert.False(t, ok)
}
