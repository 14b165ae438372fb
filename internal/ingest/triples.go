package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/model"
)

// extractTriples asks the LLM for (subject, predicate, object) triples,
// lowercase-normalises them, and drops anything failing schema — empty
// fields, since RawTriple's json tags already force string typing
// (§4.1, §9 open question 2).
func (ig *Ingestor) extractTriples(ctx context.Context, userID, docID string, chunk model.Chunk) []model.KGTriple {
	if ig.llmClient == nil {
		return nil
	}
	deadline := time.Now().Add(5 * time.Second)
	res, err := ig.llmClient.Complete(ctx, triplePrompt(chunk.Text), llm.SchemaTriples, deadline)
	if err != nil {
		return nil
	}

	var out []model.KGTriple
	for _, t := range res.Triples {
		s, p, o := strings.ToLower(strings.TrimSpace(t.Subject)), strings.ToLower(strings.TrimSpace(t.Predicate)), strings.ToLower(strings.TrimSpace(t.Object))
		if s == "" || p == "" || o == "" {
			continue
		}
		out = append(out, model.KGTriple{
			ID: uuid.New().String(), UserID: userID, DocID: docID, ChunkID: chunk.ID,
			Subject: s, Predicate: p, Object: o,
		})
	}
	return out
}

func triplePrompt(text string) string {
	return "Extract subject-predicate-object triples describing the facts in the following passage.\n\n" + text
}
