// Package ingest implements the Ingestor (§4.1): classify, adaptively
// chunk, extract propositions/triples, embed and store a document,
// emitting progress events along the way and rolling back on partial
// embedding failure.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Klarline/academe/internal/apperrors"
	"github.com/Klarline/academe/internal/chunkstore"
	"github.com/Klarline/academe/internal/classify"
	"github.com/Klarline/academe/internal/config"
	"github.com/Klarline/academe/internal/lexicalindex"
	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/model"
	textsplitter "github.com/Klarline/academe/internal/textsplit"
	"github.com/Klarline/academe/internal/vectorindex"
)

// embeddingTokenLimit is OpenAI's text-embedding-3 input cap; chunks
// over this are logged since the byte budget alone doesn't catch
// dense/non-English text where bytes-per-token runs low.
const embeddingTokenLimit = 8191

var chunkTokenizer, _ = textsplitter.NewTokenCounter("text-embedding-3-small")

// Progress reports ingestion progress, grounded on the teacher's
// rag/v2.IngestProgress — widened with a document id and stage name
// since a single academe ingest can span chunking, extraction and
// embedding stages rather than one flat chunk loop.
type Progress struct {
	DocumentID  string
	Stage       string // "chunking" | "propositions" | "triples" | "embedding"
	TotalUnits  int
	CurrentUnit int
	Message     string
}

// Callbacks mirrors the teacher's IngestionCallbacks, widened with a
// per-stage Progress payload.
type Callbacks struct {
	OnStarted   func(documentID string)
	OnProgress  func(p Progress)
	OnCompleted func(documentID string)
	OnFailed    func(documentID string, err error)
}

// Ingestor is the §4.1 component.
type Ingestor struct {
	store  chunkstore.ChunkStore
	vector vectorindex.VectorIndex
	lexical lexicalindex.LexicalIndex
	llmClient llm.LLMClient
	embedClient llm.EmbedClient
	cfg    config.Config
}

func New(store chunkstore.ChunkStore, vector vectorindex.VectorIndex, lexical lexicalindex.LexicalIndex, llmClient llm.LLMClient, embedClient llm.EmbedClient, cfg config.Config) *Ingestor {
	return &Ingestor{store: store, vector: vector, lexical: lexical, llmClient: llmClient, embedClient: embedClient, cfg: cfg}
}

// Ingest runs the full pipeline for one document. sourceType is nil
// when classification should run (§4.1).
func (ig *Ingestor) Ingest(ctx context.Context, userID, title string, text []byte, filename string, sourceType *model.SourceType, cb Callbacks) (model.Document, error) {
	docID := uuid.New().String()
	if cb.OnStarted != nil {
		cb.OnStarted(docID)
	}

	st := model.SourceGeneral
	if sourceType != nil {
		st = *sourceType
	} else {
		st = classify.DocumentType(filename, string(text))
	}

	doc := model.Document{ID: docID, UserID: userID, Title: title, SourceType: st, Status: model.StatusPending, CreatedAt: time.Now()}
	if err := ig.store.PutDocument(ctx, doc); err != nil {
		return doc, apperrors.Wrap(apperrors.Internal, err)
	}
	if err := ig.store.SetDocumentStatus(ctx, docID, model.StatusProcessing); err != nil {
		return doc, apperrors.Wrap(apperrors.Internal, err)
	}
	doc.Status = model.StatusProcessing

	if err := ig.process(ctx, &doc, text, cb); err != nil {
		ig.rollback(ctx, &doc)
		doc.Status = model.StatusFailed
		if cb.OnFailed != nil {
			cb.OnFailed(docID, err)
		}
		return doc, err
	}

	if err := ig.store.SetDocumentStatus(ctx, docID, model.StatusReady); err != nil {
		return doc, apperrors.Wrap(apperrors.Internal, err)
	}
	doc.Status = model.StatusReady
	if cb.OnCompleted != nil {
		cb.OnCompleted(docID)
	}
	return doc, nil
}

func (ig *Ingestor) process(ctx context.Context, doc *model.Document, text []byte, cb Callbacks) error {
	profile := ig.cfg.Chunking.ForType(string(doc.SourceType))

	if cb.OnProgress != nil {
		cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "chunking", Message: "splitting document"})
	}
	spans, parentTexts := textsplitter.Adaptive(string(text), profile)
	if len(spans) == 0 {
		return apperrors.New(apperrors.InputInvalid, "document produced no chunks", nil)
	}

	parentIDs := make([]string, len(parentTexts))
	var chunks []model.Chunk
	for i, pt := range parentTexts {
		parentIDs[i] = uuid.New().String()
		chunks = append(chunks, model.Chunk{
			ID: parentIDs[i], DocumentID: doc.ID, UserID: doc.UserID, Ordinal: -1,
			Text: pt, DocTitle: doc.Title, IsParentRecord: true,
		})
	}

	children := make([]model.Chunk, len(spans))
	for i, span := range spans {
		c := model.Chunk{
			ID: uuid.New().String(), DocumentID: doc.ID, UserID: doc.UserID,
			Ordinal: i, Text: span.Text, DocTitle: doc.Title,
		}
		if span.ParentIndex >= 0 && span.ParentIndex < len(parentIDs) {
			c.ParentID = parentIDs[span.ParentIndex]
		}
		children[i] = c
	}

	if err := ig.store.PutChunks(ctx, append(append([]model.Chunk{}, chunks...), children...)); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}

	if cb.OnProgress != nil {
		cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "propositions", TotalUnits: len(children)})
	}
	var props []model.Proposition
	for i, c := range children {
		props = append(props, ig.extractPropositions(ctx, c)...)
		if cb.OnProgress != nil {
			cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "propositions", TotalUnits: len(children), CurrentUnit: i + 1})
		}
	}
	if len(props) > 0 {
		if err := ig.store.PutPropositions(ctx, props); err != nil {
			return apperrors.Wrap(apperrors.Internal, err)
		}
	}

	if cb.OnProgress != nil {
		cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "triples", TotalUnits: len(children)})
	}
	var triples []model.KGTriple
	seen := map[string]struct{}{}
	for i, c := range children {
		for _, t := range ig.extractTriples(ctx, doc.UserID, doc.ID, c) {
			key := t.Subject + "|" + t.Predicate + "|" + t.Object
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			triples = append(triples, t)
		}
		if cb.OnProgress != nil {
			cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "triples", TotalUnits: len(children), CurrentUnit: i + 1})
		}
	}
	if len(triples) > 0 {
		if err := ig.store.PutTriples(ctx, triples); err != nil {
			return apperrors.Wrap(apperrors.Internal, err)
		}
	}

	if cb.OnProgress != nil {
		cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "embedding", TotalUnits: len(children)})
	}
	if err := ig.embedAndStore(ctx, doc, children, cb); err != nil {
		return err
	}

	return nil
}

// embedAndStore batches enriched child text by byte budget and embeds
// each batch with retry/backoff, storing into VectorIndex and bumping
// LexicalIndex as it goes (§4.1, §5).
func (ig *Ingestor) embedAndStore(ctx context.Context, doc *model.Document, children []model.Chunk, cb Callbacks) error {
	batches := batchByBytes(children, ig.cfg.Ingest.EmbedBatchBytes)

	done := 0
	for _, batch := range batches {
		texts := make([]string, len(batch))
		for i, c := range batch {
			enriched := c.EnrichedText()
			texts[i] = enriched
			if chunkTokenizer != nil {
				if n := chunkTokenizer.Count(enriched); n > embeddingTokenLimit {
					slog.Warn("chunk exceeds embedding token limit", "chunk_id", c.ID, "tokens", n)
				}
			}
		}

		vectors, err := ig.embedWithRetry(ctx, texts)
		if err != nil {
			return err
		}

		for i, c := range batch {
			if err := ig.vector.Upsert(ctx, doc.UserID, c.ID, vectors[i], map[string]string{"document_id": doc.ID}); err != nil {
				return apperrors.Wrap(apperrors.Internal, err)
			}
			if err := ig.lexical.Upsert(ctx, doc.UserID, c.ID, c.Text); err != nil {
				return apperrors.Wrap(apperrors.Internal, err)
			}
		}
		done += len(batch)
		if cb.OnProgress != nil {
			cb.OnProgress(Progress{DocumentID: doc.ID, Stage: "embedding", TotalUnits: len(children), CurrentUnit: done})
		}
	}
	return nil
}

func (ig *Ingestor) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	maxAttempts := ig.cfg.Ingest.EmbedMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	base, backoffCap := ig.cfg.Ingest.EmbedBackoffBase, ig.cfg.Ingest.EmbedBackoffCap

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		vectors, err := ig.embedClient.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}
		wait := base * time.Duration(1<<attempt)
		if wait > backoffCap {
			wait = backoffCap
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.DependencyTimeout, ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, apperrors.New(apperrors.DependencyUnavailable, "embedding failed after retries", lastErr).WithSuggestion(apperrors.SuggestRetry)
}

// rollback deletes any chunks/propositions/triples/vector entries
// written for a failed document (§4.1 state machine).
func (ig *Ingestor) rollback(ctx context.Context, doc *model.Document) {
	chunkIDs, err := ig.store.DeleteDocument(ctx, doc.ID)
	if err != nil {
		return
	}
	_ = ig.vector.Delete(ctx, doc.UserID, chunkIDs)
	_ = ig.lexical.Delete(ctx, doc.UserID, chunkIDs)
	_ = ig.store.SetDocumentStatus(ctx, doc.ID, model.StatusFailed)
}

// batchByBytes groups enriched chunk text into batches whose combined
// byte size stays under budget (§4.1), never splitting a single chunk.
func batchByBytes(chunks []model.Chunk, budget int) [][]model.Chunk {
	if budget <= 0 {
		return [][]model.Chunk{chunks}
	}
	var batches [][]model.Chunk
	var cur []model.Chunk
	curBytes := 0
	for _, c := range chunks {
		size := len(c.EnrichedText())
		if curBytes > 0 && curBytes+size > budget {
			batches = append(batches, cur)
			cur = nil
			curBytes = 0
		}
		cur = append(cur, c)
		curBytes += size
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
