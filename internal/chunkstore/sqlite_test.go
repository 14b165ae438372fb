package chunkstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klarline/academe/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_PutDocumentBumpsDocSetVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	before, err := store.DocSetVersion(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, store.PutDocument(ctx, model.Document{
		ID: "d1", UserID: "u1", Title: "Notes", SourceType: model.SourceNotes,
		Status: model.StatusReady, CreatedAt: time.Now(),
	}))

	after, err := store.DocSetVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestSQLiteStore_DeleteDocumentCascadesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.PutDocument(ctx, model.Document{
		ID: "d1", UserID: "u1", Title: "Notes", SourceType: model.SourceNotes,
		Status: model.StatusReady, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.PutChunks(ctx, []model.Chunk{
		{ID: "c1", DocumentID: "d1", UserID: "u1", Ordinal: 0, Text: "hello"},
	}))

	before, err := store.DocSetVersion(ctx, "u1")
	require.NoError(t, err)

	deleted, err := store.DeleteDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, deleted)

	_, err = store.GetChunk(ctx, "c1")
	assert.Error(t, err)

	after, err := store.DocSetVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestSQLiteStore_FeedbackBoostScalesByUpDownRatio(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	up := func(chunkID string) model.Feedback {
		return model.Feedback{ID: chunkID + "-fb", UserID: "u1", ChunkID: chunkID, Rating: model.FeedbackUp, CreatedAt: time.Now()}
	}
	down := func(chunkID string) model.Feedback {
		return model.Feedback{ID: chunkID + "-fb2", UserID: "u1", ChunkID: chunkID, Rating: model.FeedbackDown, CreatedAt: time.Now()}
	}

	require.NoError(t, store.PutFeedback(ctx, up("liked")))
	require.NoError(t, store.PutFeedback(ctx, down("disliked")))
	require.NoError(t, store.PutFeedback(ctx, up("mixed")))
	require.NoError(t, store.PutFeedback(ctx, down("mixed")))

	boosts, err := store.FeedbackBoost(ctx, []string{"liked", "disliked", "mixed", "untouched"})
	require.NoError(t, err)

	assert.InDelta(t, 0.1, boosts["liked"], 1e-9)
	assert.InDelta(t, -0.1, boosts["disliked"], 1e-9)
	assert.InDelta(t, 0.0, boosts["mixed"], 1e-9)
	_, ok := boosts["untouched"]
	assert.False(t, ok)
}

func TestSQLiteStore_FeedbackBoostEmptyInputReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	boosts, err := store.FeedbackBoost(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, boosts)
}
