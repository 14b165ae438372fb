// Package classify implements the document-type classifier (§4.1) and
// the query-type classifier (§4.6) — both rule-based; only the query
// classifier has an optional LLM path (HybridClassifier), grounded on Aman-CERP-amanmcp's PatternClassifier/
// HybridClassifier hybrid-with-LRU-cache architecture, re-keyed to
// spec.md's own category sets.
package classify

import (
	"context"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/model"
)

func zeroDeadline() time.Time { return time.Time{} }

var (
	codeFencePattern   = regexp.MustCompile("```")
	identifierPattern  = regexp.MustCompile(`\b([a-z]+[A-Z][a-zA-Z0-9]*|[A-Z][a-z0-9]+[A-Z][a-zA-Z0-9]*|[a-z]+(_[a-z0-9]+)+)\b`)
	filePathPattern    = regexp.MustCompile(`(?i)[\w\-./\\]+\.(go|ts|tsx|js|jsx|py|md|json|yaml|yml|rs|java|c|cpp|h|rb|php)\b`)
	comparisonPattern  = regexp.MustCompile(`(?i)\b(vs\.?|versus|compared to|difference between|compare)\b`)
	proceduralPattern  = regexp.MustCompile(`(?i)^(how (do|to|can)|steps to|explain how|walk me through)\b`)
	definitionPattern  = regexp.MustCompile(`(?i)^(what is|what are|define|what does)\b`)
	codeKeywordPattern = regexp.MustCompile(`(?i)\b(function|implement|code|snippet|algorithm|syntax)\b`)
)

// QueryClassifier labels a query per §4.6's {definition, comparison,
// code, procedural, general} set.
type QueryClassifier interface {
	Classify(ctx context.Context, query string) model.QueryType
}

// PatternClassifier is the deterministic fallback: precedence mirrors
// Aman-CERP-amanmcp's "most specific pattern wins" structure.
type PatternClassifier struct{}

func NewPatternClassifier() *PatternClassifier { return &PatternClassifier{} }

func (p *PatternClassifier) Classify(_ context.Context, query string) model.QueryType {
	q := strings.TrimSpace(query)
	if q == "" {
		return model.QueryGeneral
	}
	switch {
	case codeFencePattern.MatchString(q), identifierPattern.MatchString(q), filePathPattern.MatchString(q), codeKeywordPattern.MatchString(q):
		return model.QueryCode
	case comparisonPattern.MatchString(q):
		return model.QueryComparison
	case proceduralPattern.MatchString(q):
		return model.QueryProcedural
	case definitionPattern.MatchString(q):
		return model.QueryDefinition
	default:
		return model.QueryGeneral
	}
}

// HybridClassifier tries an LLM classifier first (if configured), falls
// back to PatternClassifier, and LRU-caches by normalised query text —
// grounded on Aman-CERP-amanmcp's HybridClassifier.
type HybridClassifier struct {
	llmClient llm.LLMClient
	patterns  *PatternClassifier
	cache     *lru.Cache[string, model.QueryType]
}

func NewHybridClassifier(llmClient llm.LLMClient, cacheSize int) *HybridClassifier {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, _ := lru.New[string, model.QueryType](cacheSize)
	return &HybridClassifier{
		llmClient: llmClient,
		patterns:  NewPatternClassifier(),
		cache:     cache,
	}
}

func (h *HybridClassifier) Classify(ctx context.Context, query string) model.QueryType {
	key := strings.ToLower(strings.TrimSpace(query))
	if qt, ok := h.cache.Get(key); ok {
		return qt
	}

	qt := h.classifyUncached(ctx, query)
	h.cache.Add(key, qt)
	return qt
}

func (h *HybridClassifier) classifyUncached(ctx context.Context, query string) model.QueryType {
	if h.llmClient == nil {
		return h.patterns.Classify(ctx, query)
	}
	res, err := h.llmClient.Complete(ctx, classificationPrompt(query), llm.SchemaText, zeroDeadline())
	if err != nil || res == nil {
		return h.patterns.Classify(ctx, query)
	}
	if qt, ok := parseQueryType(res.Text); ok {
		return qt
	}
	return h.patterns.Classify(ctx, query)
}

func classificationPrompt(query string) string {
	return "Classify the following question into exactly one category: " +
		"definition, comparison, code, procedural, or general. " +
		"Respond with only the category word.\n\nQuestion: " + query
}

func parseQueryType(s string) (model.QueryType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, qt := range []model.QueryType{model.QueryDefinition, model.QueryComparison, model.QueryCode, model.QueryProcedural, model.QueryGeneral} {
		if strings.Contains(s, string(qt)) {
			return qt, true
		}
	}
	return "", false
}
