package lexicalindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Klarline/academe/internal/apperrors"
)

const academeAnalyzerName = "academe_lexical"

func init() {
	_ = registry.RegisterTokenizer(academeAnalyzerName+"_tok", unicodeTokenizerConstructor)
}

func unicodeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return cache.TokenizerNamed("unicode")
}

// ChunkLoader rebuilds a user's index from durable storage after
// eviction; it is the ChunkStore.ListChunksByUser contract narrowed to
// (id, text) pairs so this package stays independent of model/chunkstore.
type ChunkLoader func(ctx context.Context, userID string) ([]struct{ ChunkID, Text string }, error)

// BleveIndex is the primary LexicalIndex backend (§B DOMAIN STACK, pack
// enrichment), grounded on Aman-CERP-amanmcp's BleveBM25Index: one
// in-memory bleve index per user_id, built lazily on first use. Since
// the corpus can have many more users than fit comfortably in memory,
// an LRU bounds how many per-user indexes stay resident; an evicted
// user's index is rebuilt from ChunkStore on next access, with
// singleflight collapsing concurrent rebuild requests for the same
// user into one.
type BleveIndex struct {
	loader ChunkLoader

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	cache   *lru.Cache[string, bleve.Index]
	rebuild singleflight.Group
}

// NewBleveIndex bounds the number of per-user bleve indexes held
// resident at once; evicted users are rebuilt lazily via loader.
func NewBleveIndex(maxResidentUsers int, loader ChunkLoader) (*BleveIndex, error) {
	b := &BleveIndex{loader: loader, locks: map[string]*sync.Mutex{}}
	cache, err := lru.NewWithEvict(maxResidentUsers, func(userID string, idx bleve.Index) {
		_ = idx.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("new lru: %w", err)
	}
	b.cache = cache
	return b, nil
}

func (b *BleveIndex) userLock(userID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[userID] = l
	}
	return l
}

func newMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(academeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": academeAnalyzerName + "_tok",
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = academeAnalyzerName
	return m, nil
}

type bleveDoc struct {
	Text string `json:"text"`
}

func (b *BleveIndex) index(ctx context.Context, userID string) (bleve.Index, error) {
	if idx, ok := b.cache.Get(userID); ok {
		return idx, nil
	}

	v, err, _ := b.rebuild.Do(userID, func() (any, error) {
		if idx, ok := b.cache.Get(userID); ok {
			return idx, nil
		}
		m, err := newMapping()
		if err != nil {
			return nil, err
		}
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, err
		}
		if b.loader != nil {
			rows, err := b.loader(ctx, userID)
			if err != nil {
				_ = idx.Close()
				return nil, err
			}
			batch := idx.NewBatch()
			for _, row := range rows {
				if err := batch.Index(row.ChunkID, bleveDoc{Text: row.Text}); err != nil {
					_ = idx.Close()
					return nil, err
				}
			}
			if err := idx.Batch(batch); err != nil {
				_ = idx.Close()
				return nil, err
			}
		}
		b.cache.Add(userID, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(bleve.Index), nil
}

func (b *BleveIndex) Upsert(ctx context.Context, userID, chunkID, text string) error {
	lock := b.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := b.index(ctx, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	if err := idx.Index(chunkID, bleveDoc{Text: text}); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	return nil
}

func (b *BleveIndex) Search(ctx context.Context, userID, query string, k int) ([]ScoredChunk, error) {
	lock := b.userLock(userID)
	lock.Lock()
	idx, err := b.index(ctx, userID)
	lock.Unlock()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.RetrievalUnavailable, err)
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = k

	result, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.RetrievalUnavailable, err)
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}

	minScore, maxScore := result.Hits[0].Score, result.Hits[0].Score
	for _, h := range result.Hits {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	out := make([]ScoredChunk, len(result.Hits))
	for i, h := range result.Hits {
		norm := 1.0
		if maxScore > minScore {
			norm = (h.Score - minScore) / (maxScore - minScore)
		}
		out[i] = ScoredChunk{ChunkID: h.ID, Score: norm}
	}
	return out, nil
}

func (b *BleveIndex) Delete(ctx context.Context, userID string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	lock := b.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	idx, err := b.index(ctx, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	batch := idx.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	return nil
}

var _ LexicalIndex = (*BleveIndex)(nil)
