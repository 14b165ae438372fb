// Package kg provides the knowledge-graph augmentation step of the
// Retriever (§4.6 step 8): a bounded breadth-first expansion over
// subject/predicate/object triples rooted at the entities the caller
// passes in (the Retriever extracts them from the query text).
package kg

import (
	"context"

	"github.com/Klarline/academe/internal/model"
)

// TripleSource is narrowed from ChunkStore so this package doesn't
// depend on the full store contract.
type TripleSource interface {
	TriplesFor(ctx context.Context, userID string, subjects []string) ([]model.KGTriple, error)
}

// Expand performs a breadth-first walk from seeds (entity names the
// caller pulled from the query) out to maxHops, stopping early once
// maxTriples have been collected. Triples are deduplicated by
// (subject, predicate, object).
func Expand(ctx context.Context, store TripleSource, userID string, seeds []string, maxHops, maxTriples int) ([]model.KGTriple, error) {
	if len(seeds) == 0 || maxTriples <= 0 {
		return nil, nil
	}

	seen := map[string]struct{}{}
	visited := map[string]struct{}{}
	var collected []model.KGTriple

	frontier := append([]string{}, seeds...)
	for _, s := range frontier {
		visited[s] = struct{}{}
	}

	for hop := 0; hop < maxHops && len(frontier) > 0 && len(collected) < maxTriples; hop++ {
		triples, err := store.TriplesFor(ctx, userID, frontier)
		if err != nil {
			return collected, err
		}

		var next []string
		for _, t := range triples {
			key := t.Subject + "|" + t.Predicate + "|" + t.Object
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			collected = append(collected, t)
			if len(collected) >= maxTriples {
				break
			}
			if _, ok := visited[t.Object]; !ok {
				visited[t.Object] = struct{}{}
				next = append(next, t.Object)
			}
		}
		frontier = next
	}

	if len(collected) > maxTriples {
		collected = collected[:maxTriples]
	}
	return collected, nil
}
