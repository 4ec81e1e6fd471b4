package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSearchOrdersByScoreDescending(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	points := []Point{
		{ID: "1", Vector: []float32{1, 0}, Payload: NewFileChunkPayload(FileChunkPayload{Filepath: "a.go"})},
		{ID: "2", Vector: []float32{0, 1}, Payload: NewFileChunkPayload(FileChunkPayload{Filepath: "b.go"})},
		{ID: "3", Vector: []float32{0.9, 0.1}, Payload: NewFileChunkPayload(FileChunkPayload{Filepath: "c.go"})},
	}
	require.NoError(t, f.BatchUpsert(ctx, points, 0))

	results, err := f.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "1", results[0].Point.ID)
}

func TestFakeSearchFiltersByFilepath(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.BatchUpsert(ctx, []Point{
		{ID: "1", Vector: []float32{1, 0}, Payload: NewFileChunkPayload(FileChunkPayload{Filepath: "a.go"})},
		{ID: "2", Vector: []float32{1, 0}, Payload: NewFileChunkPayload(FileChunkPayload{Filepath: "b.go"})},
	}, 0))

	results, err := f.Search(ctx, []float32{1, 0}, 10, &Filter{Filepaths: []string{"a.go"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Point.Payload.File.Filepath)
}

func TestFakeDeleteRemovesPoints(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.BatchUpsert(ctx, []Point{
		{ID: "1", Payload: NewFileChunkPayload(FileChunkPayload{Filepath: "a.go"})},
	}, 0))
	assert.Equal(t, 1, f.Len())

	require.NoError(t, f.Delete(ctx, []string{"1"}))
	assert.Equal(t, 0, f.Len())
}

func TestFakeScrollPaginates(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, f.BatchUpsert(ctx, []Point{
			{ID: id, Payload: NewFileChunkPayload(FileChunkPayload{Filepath: id})},
		}, 0))
	}

	page1, next1, err := f.Scroll(ctx, nil, 2, nil)
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	require.NotNil(t, next1)

	page2, next2, err := f.Scroll(ctx, nil, 2, next1)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Nil(t, next2)
}
