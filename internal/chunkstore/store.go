// Package chunkstore implements ChunkStore (§4.2): the durable store of
// documents, chunks, propositions, triples and feedback, keyed by user,
// with the doc_set_version counter that invalidates LexicalIndex and
// ResponseCache entries.
package chunkstore

import (
	"context"
	"time"

	"github.com/Klarline/academe/internal/model"
)

// ChunkStore is the durable-store contract of §4.2 / §6.
type ChunkStore interface {
	PutDocument(ctx context.Context, doc model.Document) error
	SetDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error
	GetDocument(ctx context.Context, documentID string) (model.Document, error)

	PutChunks(ctx context.Context, chunks []model.Chunk) error
	GetChunk(ctx context.Context, chunkID string) (model.Chunk, error)
	GetAdjacent(ctx context.Context, chunkID string, window int) ([]model.Chunk, error)
	GetParent(ctx context.Context, chunkID string) (model.Chunk, error)
	ListChunksByUser(ctx context.Context, userID string) ([]model.Chunk, error)

	PutPropositions(ctx context.Context, props []model.Proposition) error
	PutTriples(ctx context.Context, triples []model.KGTriple) error
	TriplesFor(ctx context.Context, userID string, subjects []string) ([]model.KGTriple, error)

	PutFeedback(ctx context.Context, fb model.Feedback) error

	// FeedbackBoost returns a per-chunk relevance boost derived from past
	// thumbs up/down (§C supplement), for chunkIDs that have any
	// feedback at all. Absent chunks carry no boost.
	FeedbackBoost(ctx context.Context, chunkIDs []string) (map[string]float64, error)

	// DeleteDocument cascades to chunks/propositions/triples, bumps the
	// user's doc_set_version, and returns the chunk ids that must also
	// be removed from VectorIndex (I1 atomicity is the caller's job:
	// ChunkStore guarantees its own rows are gone before returning).
	DeleteDocument(ctx context.Context, documentID string) (deletedChunkIDs []string, err error)

	// DocSetVersion is the monotonic per-user counter bumped by every
	// successful PutDocument, PutChunks and DeleteDocument (§4.2); status
	// changes, propositions, triples and feedback do not bump it.
	DocSetVersion(ctx context.Context, userID string) (int64, error)

	// ReapStuckProcessing marks documents stuck in `processing` longer
	// than the configured timeout as `failed` (§5, P7) and returns
	// their ids.
	ReapStuckProcessing(ctx context.Context, olderThan time.Duration) ([]string, error)

	Close() error
}
