package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klarline/academe/internal/chunkstore"
	"github.com/Klarline/academe/internal/classify"
	"github.com/Klarline/academe/internal/config"
	"github.com/Klarline/academe/internal/lexicalindex"
	"github.com/Klarline/academe/internal/model"
	"github.com/Klarline/academe/internal/rerank"
	"github.com/Klarline/academe/internal/vectorindex"
)

func seedChunk(t *testing.T, store *chunkstore.SQLiteStore, lex lexicalindex.LexicalIndex, vec vectorindex.VectorIndex, userID, docID, id string, ordinal int, text string, embedding []float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.PutChunks(ctx, []model.Chunk{{
		ID: id, DocumentID: docID, UserID: userID, Ordinal: ordinal, Text: text, DocTitle: "Doc",
	}}))
	require.NoError(t, lex.Upsert(ctx, userID, id, text))
	require.NoError(t, vec.Upsert(ctx, userID, id, embedding, nil))
}

func TestRetriever_Retrieve_FusesLexicalAndVector(t *testing.T) {
	store, err := chunkstore.Open(":memory:")
	require.NoError(t, err)
	lex, err := lexicalindex.NewBleveIndex(8, nil)
	require.NoError(t, err)
	vec := vectorindex.NewInMemory()

	require.NoError(t, store.PutDocument(context.Background(), model.Document{ID: "d1", UserID: "u1", Title: "Doc"}))
	seedChunk(t, store, lex, vec, "u1", "d1", "c1", 0, "mitochondria produce ATP", []float32{1, 0, 0})
	seedChunk(t, store, lex, vec, "u1", "d1", "c2", 1, "chloroplasts perform photosynthesis", []float32{0, 1, 0})

	cfg := config.Default()
	r := New(store, lex, vec, rerank.NoOp{}, classify.NewPatternClassifier(), *cfg)

	result, err := r.Retrieve(context.Background(), "u1", "mitochondria", []float32{1, 0, 0}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "c1", result.Chunks[0].ChunkID)
	assert.Equal(t, model.StrategyHybrid, result.UsedStrategy)
}

type failingVector struct{}

func (failingVector) Upsert(ctx context.Context, userID, chunkID string, vector []float32, metadata map[string]string) error {
	return nil
}
func (failingVector) Search(ctx context.Context, userID string, queryVector []float32, k int, filter vectorindex.Filter) ([]vectorindex.ScoredChunk, error) {
	return nil, assert.AnError
}
func (failingVector) Delete(ctx context.Context, userID string, chunkIDs []string) error { return nil }

func TestRetriever_Retrieve_DegradesToLexicalOnlyWhenVectorFails(t *testing.T) {
	store, err := chunkstore.Open(":memory:")
	require.NoError(t, err)
	lex, err := lexicalindex.NewBleveIndex(8, nil)
	require.NoError(t, err)

	require.NoError(t, store.PutDocument(context.Background(), model.Document{ID: "d1", UserID: "u1", Title: "Doc"}))
	require.NoError(t, store.PutChunks(context.Background(), []model.Chunk{{ID: "c1", DocumentID: "d1", UserID: "u1", Text: "mitochondria produce ATP", DocTitle: "Doc"}}))
	require.NoError(t, lex.Upsert(context.Background(), "u1", "c1", "mitochondria produce ATP"))

	cfg := config.Default()
	r := New(store, lex, failingVector{}, rerank.NoOp{}, classify.NewPatternClassifier(), *cfg)

	result, err := r.Retrieve(context.Background(), "u1", "mitochondria", []float32{1, 0, 0}, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.StrategyLexicalOnly, result.UsedStrategy)
	require.NotEmpty(t, result.Chunks)
}

type failingLexical struct{}

func (failingLexical) Upsert(ctx context.Context, userID, chunkID, text string) error { return nil }
func (failingLexical) Search(ctx context.Context, userID, query string, k int) ([]lexicalindex.ScoredChunk, error) {
	return nil, assert.AnError
}
func (failingLexical) Delete(ctx context.Context, userID string, chunkIDs []string) error { return nil }

func TestRetriever_Retrieve_BothFail_ReturnsRetrievalUnavailable(t *testing.T) {
	store, err := chunkstore.Open(":memory:")
	require.NoError(t, err)

	cfg := config.Default()
	r := New(store, failingLexical{}, failingVector{}, rerank.NoOp{}, classify.NewPatternClassifier(), *cfg)

	_, err = r.Retrieve(context.Background(), "u1", "mitochondria", []float32{1, 0, 0}, Options{})
	require.Error(t, err)
}
