package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klarline/academe/internal/apperrors"
	iface "github.com/Klarline/academe/internal/llm/iface"
	models "github.com/Klarline/academe/internal/llm/models"
	"github.com/Klarline/academe/internal/llm/thinking"
)

// Schema names the structured shape a Complete call must return (§6).
type Schema string

const (
	SchemaText         Schema = ""             // plain text
	SchemaStringList   Schema = "string_list"  // decomposition, proposition extraction
	SchemaTriples      Schema = "triples"      // KG extraction
	SchemaVerdict      Schema = "verdict"      // self-RAG sufficiency
)

// Result is what Complete returns: either free text or a structured
// variant, per §9's "Ok(structured) | InvalidResponse" re-architecture.
type Result struct {
	Text       string
	Strings    []string
	Triples    []RawTriple
	Verdict    Verdict
}

// RawTriple is the LLM's unvalidated KG-extraction output, before the
// Ingestor's schema/dedup pass (§4.1).
type RawTriple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Verdict is the self-RAG sufficiency signal (§4.7 step 6).
type Verdict string

const (
	VerdictSufficient   Verdict = "sufficient"
	VerdictInsufficient Verdict = "insufficient"
)

// LLMClient is the core's only dependency on a generative model (§6).
type LLMClient interface {
	// Complete asks the model to answer prompt, optionally in structured
	// mode. deadline, if non-zero, bounds the call.
	Complete(ctx context.Context, prompt string, schema Schema, deadline time.Time) (*Result, error)
}

// EmbedClient is the core's only dependency on an embedding model (§6).
// Texts are guaranteed to be ≤ 8KB each (B1); batching is the client's
// responsibility.
type EmbedClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// providerAdapter turns a teacher-shaped iface.LLM (one concrete
// provider: OpenAI, Ollama, ...) into the core's LLMClient+EmbedClient.
// Structured mode is implemented by prompt-wrapping plus JSON decode,
// since iface.LLM.Chat only returns free text (§9: duck-typed LLM
// providers become one explicit interface pair at the core boundary).
type providerAdapter struct {
	provider  iface.LLM
	chatModel string
	embedModel string
	dim        int
}

// NewProviderAdapter wraps a concrete iface.LLM provider (openai.Client,
// ollama.Client, or llm.StubProvider) as an LLMClient+EmbedClient.
func NewProviderAdapter(provider iface.LLM, chatModel, embedModel string, dim int) *providerAdapter {
	return &providerAdapter{provider: provider, chatModel: chatModel, embedModel: embedModel, dim: dim}
}

func (a *providerAdapter) Dimensions() int { return a.dim }

func (a *providerAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		resp, err := a.provider.Embeddings(ctx, &models.EmbeddingsRequest{
			Model:   a.embedModel,
			Content: t,
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
		}
		out[i] = resp.Embeddings
	}
	return out, nil
}

func schemaInstruction(s Schema) string {
	switch s {
	case SchemaStringList:
		return "\n\nRespond with ONLY a JSON array of strings, no prose, no markdown fences."
	case SchemaTriples:
		return `\n\nRespond with ONLY a JSON array of objects {"subject":"","predicate":"","object":""}, no prose, no markdown fences.`
	case SchemaVerdict:
		return `\n\nRespond with ONLY the single word "sufficient" or "insufficient".`
	default:
		return ""
	}
}

func (a *providerAdapter) Complete(ctx context.Context, prompt string, schema Schema, deadline time.Time) (*Result, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	full := prompt + schemaInstruction(schema)
	req := &models.ChatRequest{
		Model: a.chatModel,
		Messages: []*models.Message{
			{Role: models.UserRole, Content: full},
		},
	}
	if schema != SchemaText {
		// Structured replies (string lists, triples, verdicts) must decode
		// cleanly; a low-temperature sample cuts the odds of stray prose
		// that would fail decodeJSONLoose.
		req.Options = models.LowTemperature()
	}
	resp, err := a.provider.Chat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.New(apperrors.DependencyTimeout, "llm call deadline exceeded", err)
		}
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}

	content, _ := thinking.ProcessContent(resp.Content)
	return parseResult(content, schema)
}

func parseResult(content string, schema Schema) (*Result, error) {
	switch schema {
	case SchemaText:
		return &Result{Text: content}, nil
	case SchemaStringList:
		var xs []string
		if err := decodeJSONLoose(content, &xs); err != nil {
			return nil, apperrors.New(apperrors.Internal, "invalid_response", err).WithSuggestion(apperrors.SuggestRephrase)
		}
		return &Result{Strings: xs}, nil
	case SchemaTriples:
		var ts []RawTriple
		if err := decodeJSONLoose(content, &ts); err != nil {
			return nil, apperrors.New(apperrors.Internal, "invalid_response", err).WithSuggestion(apperrors.SuggestRephrase)
		}
		return &Result{Triples: ts}, nil
	case SchemaVerdict:
		v := VerdictInsufficient
		if containsFold(content, "insufficient") {
			v = VerdictInsufficient
		} else if containsFold(content, "sufficient") {
			v = VerdictSufficient
		}
		return &Result{Verdict: v}, nil
	default:
		return &Result{Text: content}, nil
	}
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 || nl > hl {
		return false
	}
	lower := func(b byte) byte {
		if b >= 'A' && b <= 'Z' {
			return b + 32
		}
		return b
	}
	for i := 0; i+nl <= hl; i++ {
		ok := true
		for j := 0; j < nl; j++ {
			if lower(haystack[i+j]) != lower(needle[j]) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// decodeJSONLoose strips common LLM wrapping (markdown fences) before
// decoding, per §9's InvalidResponse-as-variant re-architecture.
func decodeJSONLoose(content string, v interface{}) error {
	s := stripFences(content)
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\n' || s[start] == '\t' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\n' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	s = s[start:end]
	if len(s) >= 3 && s[:3] == "```" {
		// drop opening fence line
		if i := indexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if len(s) >= 3 && s[len(s)-3:] == "```" {
			s = s[:len(s)-3]
		}
	}
	return s
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
