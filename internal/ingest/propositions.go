package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/model"
)

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	t, err := english.NewSentenceTokenizer(nil)
	if err == nil {
		sentenceTokenizer = t
	}
}

// extractPropositions asks the LLM for 1-7 atomic statements per chunk,
// falling back to a sentence-tokeniser split when the LLM is
// unavailable (§4.1) — grounded on the teacher's neurosnap/sentences
// usage in examples/textsplitter/sentence-splitter.
func (ig *Ingestor) extractPropositions(ctx context.Context, chunk model.Chunk) []model.Proposition {
	if ig.llmClient != nil {
		deadline := time.Now().Add(5 * time.Second)
		res, err := ig.llmClient.Complete(ctx, propositionPrompt(chunk.Text), llm.SchemaStringList, deadline)
		if err == nil && len(res.Strings) > 0 {
			out := make([]model.Proposition, 0, len(res.Strings))
			for _, s := range res.Strings {
				if s == "" {
					continue
				}
				out = append(out, model.Proposition{ID: uuid.New().String(), ChunkID: chunk.ID, Text: s})
				if len(out) >= 7 {
					break
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return fallbackPropositions(chunk)
}

func propositionPrompt(text string) string {
	return "Extract 1 to 7 atomic, self-contained factual statements from the following passage. " +
		"Resolve pronouns using the passage's own context so each statement stands alone.\n\n" + text
}

// fallbackPropositions emits one proposition per sentence of length >=
// 25 characters (§4.1), used when the LLM is unavailable.
func fallbackPropositions(chunk model.Chunk) []model.Proposition {
	var sents []string
	if sentenceTokenizer != nil {
		for _, s := range sentenceTokenizer.Tokenize(chunk.Text) {
			sents = append(sents, strings.TrimSpace(s.Text))
		}
	} else {
		for _, s := range strings.Split(chunk.Text, ". ") {
			sents = append(sents, strings.TrimSpace(s))
		}
	}

	var out []model.Proposition
	for _, s := range sents {
		if len(s) >= 25 {
			out = append(out, model.Proposition{ID: uuid.New().String(), ChunkID: chunk.ID, Text: s})
		}
	}
	return out
}
