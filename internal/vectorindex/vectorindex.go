// Package vectorindex implements VectorIndex (§4.3): an ANN store over
// chunk embeddings, namespaced per user_id.
package vectorindex

import "context"

// ScoredChunk is one VectorIndex search hit (§4.3).
type ScoredChunk struct {
	ChunkID string
	Score   float64 // cosine, normalised to [0,1] via (1+cos)/2
}

// Filter restricts Search to chunks whose metadata matches (e.g.
// document_id). Empty means unfiltered.
type Filter map[string]string

// VectorIndex is the §4.3 contract.
type VectorIndex interface {
	// Upsert is idempotent per chunk_id.
	Upsert(ctx context.Context, userID, chunkID string, vector []float32, metadata map[string]string) error
	Search(ctx context.Context, userID string, queryVector []float32, k int, filter Filter) ([]ScoredChunk, error)
	Delete(ctx context.Context, userID string, chunkIDs []string) error
}
