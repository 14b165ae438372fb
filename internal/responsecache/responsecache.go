// Package responsecache implements ResponseCache (§4.5): a per-user
// cache of prior answers keyed by embedding similarity rather than
// exact text match, invalidated whenever the user's document set
// changes.
package responsecache

import (
	"context"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Klarline/academe/internal/model"
)

// ResponseCache is the §4.5 contract.
type ResponseCache interface {
	// Lookup returns the best entry whose query embedding has cosine
	// similarity >= threshold to queryEmbedding, scoped to userID and
	// the current docSetVersion. ok is false on a miss.
	Lookup(ctx context.Context, userID string, queryEmbedding []float32, docSetVersion int64) (entry model.ResponseCacheEntry, ok bool, err error)
	Store(ctx context.Context, entry model.ResponseCacheEntry) error
	// InvalidateUser drops every cached entry for userID (called by
	// answer.Orchestrator.DeleteDocument after the delete bumps
	// doc_set_version).
	InvalidateUser(ctx context.Context, userID string) error
}

// LRUCache is the primary ResponseCache backend, grounded on
// Aman-CERP-amanmcp's internal/embed.CachedEmbedder: an LRU of entries per user,
// but keyed by cosine similarity against a threshold instead of an
// exact SHA-256 text key, since two different phrasings of the same
// question should still hit.
type LRUCache struct {
	threshold       float64
	capacityPerUser int
	ttl             time.Duration
	now             func() time.Time

	mu    sync.Mutex
	users map[string]*lru.Cache[string, model.ResponseCacheEntry]
}

// NewLRUCache builds a ResponseCache whose entries expire after ttl (0
// disables time-based expiry, leaving only the DocSetVersion check).
func NewLRUCache(threshold float64, capacityPerUser int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		threshold:       threshold,
		capacityPerUser: capacityPerUser,
		ttl:             ttl,
		now:             time.Now,
		users:           map[string]*lru.Cache[string, model.ResponseCacheEntry]{},
	}
}

func (c *LRUCache) userCache(userID string) *lru.Cache[string, model.ResponseCacheEntry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.users[userID]
	if !ok {
		cache, _ = lru.New[string, model.ResponseCacheEntry](c.capacityPerUser)
		c.users[userID] = cache
	}
	return cache
}

func (c *LRUCache) Lookup(ctx context.Context, userID string, queryEmbedding []float32, docSetVersion int64) (model.ResponseCacheEntry, bool, error) {
	cache := c.userCache(userID)

	var best model.ResponseCacheEntry
	bestSim := -1.0
	found := false

	for _, key := range cache.Keys() {
		entry, ok := cache.Peek(key)
		if !ok || entry.DocSetVersion != docSetVersion {
			continue
		}
		if c.expired(entry) {
			cache.Remove(key)
			continue
		}
		sim := cosine(entry.QueryEmbedding, queryEmbedding)
		if sim >= c.threshold && sim > bestSim {
			best, bestSim, found = entry, sim, true
		}
	}
	if found {
		cache.Get(best.QueryText) // bump recency on hit
	}
	return best, found, nil
}

func (c *LRUCache) Store(ctx context.Context, entry model.ResponseCacheEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}
	cache := c.userCache(entry.UserID)
	cache.Add(entry.QueryText, entry)
	return nil
}

// expired reports whether entry's CreatedAt is older than c.ttl. A zero
// ttl disables time-based expiry entirely.
func (c *LRUCache) expired(entry model.ResponseCacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(entry.CreatedAt) > c.ttl
}

func (c *LRUCache) InvalidateUser(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, userID)
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ ResponseCache = (*LRUCache)(nil)
