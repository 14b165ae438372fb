// Package retrieve implements the Retriever (§4.6): query
// classification, hybrid lexical+vector fusion, reranking, neighbour
// expansion and KG augmentation, degrading gracefully when a
// dependency fails.
package retrieve

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/Klarline/academe/internal/apperrors"
	"github.com/Klarline/academe/internal/chunkstore"
	"github.com/Klarline/academe/internal/classify"
	"github.com/Klarline/academe/internal/config"
	"github.com/Klarline/academe/internal/kg"
	"github.com/Klarline/academe/internal/lexicalindex"
	"github.com/Klarline/academe/internal/model"
	"github.com/Klarline/academe/internal/rerank"
	"github.com/Klarline/academe/internal/vectorindex"
)

// Options narrows per-call retrieval behaviour; zero value uses
// Retriever's configured defaults.
type Options struct {
	RerankedTopK int
}

// Retriever is the §4.6 component.
type Retriever struct {
	store    chunkstore.ChunkStore
	lexical  lexicalindex.LexicalIndex
	vector   vectorindex.VectorIndex
	reranker rerank.RerankerClient
	queryCls classify.QueryClassifier
	cfg      config.Config
}

func New(store chunkstore.ChunkStore, lexical lexicalindex.LexicalIndex, vector vectorindex.VectorIndex, reranker rerank.RerankerClient, queryCls classify.QueryClassifier, cfg config.Config) *Retriever {
	if reranker == nil {
		reranker = rerank.NoOp{}
	}
	return &Retriever{store: store, lexical: lexical, vector: vector, reranker: reranker, queryCls: queryCls, cfg: cfg}
}

type fusedHit struct {
	chunkID string
	score   float64
}

// Retrieve runs the single-query hybrid pipeline (§4.6 steps 1-8).
func (r *Retriever) Retrieve(ctx context.Context, userID, queryText string, queryEmbedding []float32, opts Options) (model.RankedContext, error) {
	return r.RetrieveMulti(ctx, userID, []QueryVariant{{Text: queryText, Embedding: queryEmbedding}}, opts)
}

// QueryVariant is one phrasing of a query the orchestrator wants
// merged into a single RankedContext (§4.6 "Multi-query expansion").
type QueryVariant struct {
	Text      string
	Embedding []float32
}

// RetrieveMulti fans a set of query variants (the original plus any
// LLM reformulations) through fusion, merging by max fused score per
// chunk before reranking (§4.6 "Multi-query expansion").
func (r *Retriever) RetrieveMulti(ctx context.Context, userID string, variants []QueryVariant, opts Options) (model.RankedContext, error) {
	if len(variants) == 0 {
		return model.RankedContext{}, apperrors.New(apperrors.InputInvalid, "no query variants", nil)
	}

	qType := model.QueryGeneral
	if r.queryCls != nil {
		qType = r.queryCls.Classify(ctx, variants[0].Text)
	}
	weights := r.cfg.Fusion.ForQueryType(string(qType))

	merged := map[string]float64{}
	strategy := model.StrategyHybrid
	vectorFailed, lexicalFailed := false, false

	for _, v := range variants {
		lexResults, lexErr := r.lexical.Search(ctx, userID, v.Text, r.cfg.Retrieval.LexicalTopK)
		if lexErr != nil {
			lexicalFailed = true
			lexResults = nil
		}
		vecResults, vecErr := r.vector.Search(ctx, userID, v.Embedding, r.cfg.Retrieval.VectorTopK, nil)
		if vecErr != nil {
			vectorFailed = true
			vecResults = nil
		}

		fused := fuse(lexResults, vecResults, weights)
		for id, score := range fused {
			if cur, ok := merged[id]; !ok || score > cur {
				merged[id] = score
			}
		}
	}

	if lexicalFailed && vectorFailed {
		return model.RankedContext{}, apperrors.New(apperrors.RetrievalUnavailable, "both lexical and vector retrieval unavailable", nil).WithSuggestion(apperrors.SuggestRetry)
	}

	r.applyFeedbackBoost(ctx, merged)
	switch {
	case vectorFailed:
		strategy = model.StrategyLexicalOnly
	case lexicalFailed:
		strategy = model.StrategyVectorOnly
	}

	top := topN(merged, r.cfg.Retrieval.FusedTopK)
	if len(top) == 0 {
		return model.RankedContext{Chunks: nil, UsedStrategy: strategy}, nil
	}

	rerankedTopK := opts.RerankedTopK
	if rerankedTopK <= 0 {
		rerankedTopK = r.cfg.Retrieval.RerankedTopK
	}

	chunks, err := r.loadChunks(ctx, top)
	if err != nil {
		return model.RankedContext{}, apperrors.Wrap(apperrors.Internal, err)
	}

	rerankSkipped := false
	if r.reranker != nil && r.reranker.Available(ctx) {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		scores, err := r.reranker.Rerank(ctx, variants[0].Text, texts)
		if err == nil && len(scores) == len(chunks) {
			for i := range chunks {
				chunks[i].Score = scores[i]
			}
		} else {
			rerankSkipped = true
		}
	} else {
		rerankSkipped = true
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > rerankedTopK {
		chunks = chunks[:rerankedTopK]
	}

	contextChunks, err := r.expand(ctx, chunks)
	if err != nil {
		return model.RankedContext{}, apperrors.Wrap(apperrors.Internal, err)
	}

	seeds := extractEntities(variants[0].Text)
	triples, _ := kg.Expand(ctx, r.store, userID, seeds, r.cfg.Retrieval.KGMaxHops, r.cfg.Retrieval.KGMaxTriples)

	return model.RankedContext{
		Chunks:        contextChunks,
		Triples:       triples,
		UsedStrategy:  strategy,
		RerankSkipped: rerankSkipped,
	}, nil
}

// DeleteDocument removes an already-ingested document from every index
// the Retriever reads: ChunkStore rows, VectorIndex vectors and
// LexicalIndex postings, in that order, mirroring the ingest
// package's failure-path rollback (§4.1) so P1 (VectorIndex/ChunkStore
// chunk-id parity) holds across delete as well as ingest. A
// VectorIndex/LexicalIndex failure after the ChunkStore rows are gone
// is reported rather than swallowed, since an orphaned vector/lexical
// entry for a chunk id ChunkStore no longer knows about would silently
// violate P1 on the next query.
func (r *Retriever) DeleteDocument(ctx context.Context, userID, documentID string) error {
	chunkIDs, err := r.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := r.vector.Delete(ctx, userID, chunkIDs); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	if err := r.lexical.Delete(ctx, userID, chunkIDs); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	return nil
}

// applyFeedbackBoost nudges fused scores by past thumbs up/down on each
// chunk (§C supplement, capped at +-0.1 in ChunkStore.FeedbackBoost).
// A weak signal: failures to fetch it are silently ignored.
func (r *Retriever) applyFeedbackBoost(ctx context.Context, merged map[string]float64) {
	if len(merged) == 0 {
		return
	}
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	boosts, err := r.store.FeedbackBoost(ctx, ids)
	if err != nil || len(boosts) == 0 {
		return
	}
	for id, boost := range boosts {
		merged[id] += boost
	}
}

func fuse(lex []lexicalindex.ScoredChunk, vec []vectorindex.ScoredChunk, weights config.FusionWeights) map[string]float64 {
	out := map[string]float64{}
	for _, l := range lex {
		out[l.ChunkID] += weights.Alpha * l.Score
	}
	for _, v := range vec {
		out[v.ChunkID] += weights.Beta * v.Score
	}
	return out
}

func topN(scores map[string]float64, n int) []fusedHit {
	hits := make([]fusedHit, 0, len(scores))
	for id, s := range scores {
		hits = append(hits, fusedHit{chunkID: id, score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits
}

func (r *Retriever) loadChunks(ctx context.Context, hits []fusedHit) ([]model.ContextChunk, error) {
	out := make([]model.ContextChunk, 0, len(hits))
	for _, h := range hits {
		c, err := r.store.GetChunk(ctx, h.chunkID)
		if err != nil {
			continue
		}
		out = append(out, model.ContextChunk{
			ChunkID: c.ID, Text: c.Text, ExpandedText: c.Text,
			DocTitle: c.DocTitle, Section: c.SectionTitle, Page: c.Page, Score: h.score,
		})
	}
	return out, nil
}

// expand attaches sliding-window or parent context per chunk (§4.6
// Expansion policy), deduplicating by chunk_id across the result.
func (r *Retriever) expand(ctx context.Context, chunks []model.ContextChunk) ([]model.ContextChunk, error) {
	seen := map[string]struct{}{}
	out := make([]model.ContextChunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}

		full, err := r.store.GetChunk(ctx, c.ChunkID)
		if err == nil && full.ParentID != "" {
			if parent, err := r.store.GetParent(ctx, c.ChunkID); err == nil {
				c.ExpandedText = parent.Text
				out = append(out, c)
				continue
			}
		}

		neighbours, err := r.store.GetAdjacent(ctx, c.ChunkID, r.cfg.Retrieval.SlidingWindow)
		if err == nil && len(neighbours) > 0 {
			var sb strings.Builder
			for i, n := range neighbours {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(n.Text)
			}
			c.ExpandedText = sb.String()
		}
		out = append(out, c)
	}
	return out, nil
}

var properNounSpan = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)*)\b`)

// extractEntities is the §4.6 step 8 "named-entity heuristic": runs of
// capitalised words, lowercased to match the lowercase-normalised KG
// triples (§9 open question 2).
func extractEntities(query string) []string {
	matches := properNounSpan.FindAllString(query, -1)
	seen := map[string]struct{}{}
	var out []string
	for _, m := range matches {
		lower := strings.ToLower(m)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}
