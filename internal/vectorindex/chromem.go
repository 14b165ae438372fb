package vectorindex

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Klarline/academe/internal/apperrors"
)

// ChromemIndex is the primary VectorIndex backend (§B DOMAIN STACK),
// grounded on the teacher's vectordb/v0/go-chromem.ChromaDB: one
// chromem-go collection per user_id is the natural mapping onto
// VectorIndex's per-user namespacing (§4.3), adapted here from the
// teacher's Document/text-query contract to the spec's precomputed-
// vector upsert/search contract — embeddings always arrive already
// computed, so collections are created with a nil embedding func and
// searched via QueryEmbedding rather than Query.
type ChromemIndex struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

func NewInMemory() *ChromemIndex {
	return &ChromemIndex{db: chromem.NewDB(), collections: map[string]*chromem.Collection{}}
}

func NewPersistent(path string) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemIndex{db: db, collections: map[string]*chromem.Collection{}}, nil
}

func collectionName(userID string) string { return "user_" + userID }

func (c *ChromemIndex) collection(userID string) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := collectionName(userID)
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col := c.db.GetCollection(name, nil)
	if col == nil {
		var err error
		col, err = c.db.CreateCollection(name, nil, nil)
		if err != nil {
			return nil, err
		}
	}
	c.collections[name] = col
	return col, nil
}

func (c *ChromemIndex) Upsert(ctx context.Context, userID, chunkID string, vector []float32, metadata map[string]string) error {
	col, err := c.collection(userID)
	if err != nil {
		return apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	doc := chromem.Document{ID: chunkID, Embedding: vector, Metadata: metadata}
	if err := col.AddDocument(ctx, doc); err != nil {
		return apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, userID string, queryVector []float32, k int, filter Filter) ([]ScoredChunk, error) {
	col, err := c.collection(userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, queryVector, k, map[string]string(filter), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}

	out := make([]ScoredChunk, len(results))
	for i, r := range results {
		out[i] = ScoredChunk{ChunkID: r.ID, Score: (1 + float64(r.Similarity)) / 2}
	}
	return out, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, userID string, chunkIDs []string) error {
	col, err := c.collection(userID)
	if err != nil {
		return apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	if err := col.Delete(ctx, nil, nil, chunkIDs...); err != nil {
		return apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	return nil
}

var _ VectorIndex = (*ChromemIndex)(nil)
