// Package rerank defines the RerankerClient contract (§6) and a
// graceful-degradation fallback, grounded on Aman-CERP-amanmcp's
// internal/search/reranker.go.
package rerank

import "context"

// RerankerClient scores (query, doc) pairs with a cross-encoder,
// returning scores in [0,1] (§6). Its absence degrades gracefully
// (§4.6 failure modes): callers should treat Available()==false the
// same as an error from Rerank, and skip reranking.
type RerankerClient interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
	Available(ctx context.Context) bool
}

// NoOp returns monotonically decreasing scores so a caller that
// blindly sorts by score preserves the incoming (fused) order — used
// when no RerankerClient is configured at all.
type NoOp struct{}

func (NoOp) Available(context.Context) bool { return false }

func (NoOp) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for i := range docs {
		scores[i] = 1.0 - float64(i)*0.001
	}
	return scores, nil
}
