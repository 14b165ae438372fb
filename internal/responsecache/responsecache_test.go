package responsecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klarline/academe/internal/model"
)

func TestLRUCache_Lookup_HitsOnSimilarEmbeddingAboveThreshold(t *testing.T) {
	c := NewLRUCache(0.95, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "what is a mitochondria",
		QueryEmbedding: []float32{1, 0, 0},
		AnswerText:     "cached answer",
		DocSetVersion:  1,
	}))

	entry, ok, err := c.Lookup(ctx, "u1", []float32{0.999, 0.001, 0}, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached answer", entry.AnswerText)
}

func TestLRUCache_Lookup_MissesBelowThreshold(t *testing.T) {
	c := NewLRUCache(0.95, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "what is a mitochondria",
		QueryEmbedding: []float32{1, 0, 0},
		DocSetVersion:  1,
	}))

	_, ok, err := c.Lookup(ctx, "u1", []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_Lookup_MissesOnStaleDocSetVersion(t *testing.T) {
	c := NewLRUCache(0.95, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0, 0},
		DocSetVersion:  1,
	}))

	_, ok, err := c.Lookup(ctx, "u1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_InvalidateUser_ClearsAllEntries(t *testing.T) {
	c := NewLRUCache(0.95, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0, 0},
		DocSetVersion:  1,
	}))
	require.NoError(t, c.InvalidateUser(ctx, "u1"))

	_, ok, err := c.Lookup(ctx, "u1", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_IsolatesPerUser(t *testing.T) {
	c := NewLRUCache(0.95, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0, 0},
		DocSetVersion:  1,
	}))

	_, ok, err := c.Lookup(ctx, "u2", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_Lookup_MissesOnExpiredTTL(t *testing.T) {
	c := NewLRUCache(0.95, 10, time.Hour)
	ctx := context.Background()
	start := time.Now()
	c.now = func() time.Time { return start }

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0, 0},
		DocSetVersion:  1,
	}))

	c.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, ok, err := c.Lookup(ctx, "u1", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewLRUCache(0.95, 10, 0)
	ctx := context.Background()
	start := time.Now()
	c.now = func() time.Time { return start }

	require.NoError(t, c.Store(ctx, model.ResponseCacheEntry{
		UserID:         "u1",
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0, 0},
		DocSetVersion:  1,
	}))

	c.now = func() time.Time { return start.Add(365 * 24 * time.Hour) }
	_, ok, err := c.Lookup(ctx, "u1", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}
