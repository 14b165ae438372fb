package lexicalindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveIndex_UpsertAndSearch_Basic(t *testing.T) {
	idx, err := NewBleveIndex(8, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "u1", "c1", "the mitochondria is the powerhouse of the cell"))
	require.NoError(t, idx.Upsert(ctx, "u1", "c2", "photosynthesis converts light into chemical energy"))

	results, err := idx.Search(ctx, "u1", "mitochondria", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestBleveIndex_Search_NormalisesScoresIntoZeroOne(t *testing.T) {
	idx, err := NewBleveIndex(8, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "u1", "c1", "cell energy mitochondria energy energy"))
	require.NoError(t, idx.Upsert(ctx, "u1", "c2", "energy appears once here"))

	results, err := idx.Search(ctx, "u1", "energy", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	assert.Equal(t, 1.0, results[0].Score)
}

func TestBleveIndex_Search_IsolatesPerUser(t *testing.T) {
	idx, err := NewBleveIndex(8, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "u1", "c1", "quantum entanglement"))
	require.NoError(t, idx.Upsert(ctx, "u2", "c2", "quantum entanglement"))

	results, err := idx.Search(ctx, "u1", "quantum", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestBleveIndex_Delete_RemovesChunk(t *testing.T) {
	idx, err := NewBleveIndex(8, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "u1", "c1", "mitochondria"))
	require.NoError(t, idx.Delete(ctx, "u1", []string{"c1"}))

	results, err := idx.Search(ctx, "u1", "mitochondria", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_RebuildsEvictedUserFromLoader(t *testing.T) {
	loaded := false
	loader := func(ctx context.Context, userID string) ([]struct{ ChunkID, Text string }, error) {
		loaded = true
		return []struct{ ChunkID, Text string }{
			{ChunkID: "c1", Text: "mitochondria"},
		}, nil
	}

	idx, err := NewBleveIndex(1, loader)
	require.NoError(t, err)

	ctx := context.Background()
	// Force u1's resident index to be created, then evict it by touching u2.
	require.NoError(t, idx.Upsert(ctx, "u1", "seed", "seed"))
	_, err = idx.Search(ctx, "u2", "anything", 10)
	require.NoError(t, err)

	results, err := idx.Search(ctx, "u1", "mitochondria", 10)
	require.NoError(t, err)
	assert.True(t, loaded)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}
