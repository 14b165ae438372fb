// Package lexicalindex implements LexicalIndex (§4.4): a per-user BM25
// keyword index over chunk text, normalised to [0,1] for fusion with
// VectorIndex scores.
package lexicalindex

import "context"

// ScoredChunk is one LexicalIndex search hit, score in [0,1] after
// min-max normalisation across the result set (§4.4).
type ScoredChunk struct {
	ChunkID string
	Score   float64
}

// LexicalIndex is the §4.4 contract.
type LexicalIndex interface {
	Upsert(ctx context.Context, userID, chunkID, text string) error
	Search(ctx context.Context, userID, query string, k int) ([]ScoredChunk, error)
	Delete(ctx context.Context, userID string, chunkIDs []string) error
}
