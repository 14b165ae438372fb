// Package answer implements the AnswerOrchestrator (§4.7): the
// top-level handler for one question — cache probe, rewrite, optional
// decomposition, multi-query retrieval with self-RAG verification, and
// grounded generation with citations.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Klarline/academe/internal/apperrors"
	"github.com/Klarline/academe/internal/classify"
	"github.com/Klarline/academe/internal/config"
	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/metrics"
	"github.com/Klarline/academe/internal/model"
	"github.com/Klarline/academe/internal/responsecache"
	"github.com/Klarline/academe/internal/retrieve"
)

// Options narrows one Answer call (§6 Answer API).
type Options struct {
	UseCache             *bool
	MaxSelfRAGIterations int
	Deadline             time.Duration
}

// Orchestrator is the §4.7 component.
type Orchestrator struct {
	cache       responsecache.ResponseCache
	retriever   *retrieve.Retriever
	llmClient   llm.LLMClient
	embedClient llm.EmbedClient
	docSetVer   func(ctx context.Context, userID string) (int64, error)
	queryCls    classify.QueryClassifier
	cfg         config.Config
	metrics     *metrics.Recorder
}

func New(cache responsecache.ResponseCache, retriever *retrieve.Retriever, llmClient llm.LLMClient, embedClient llm.EmbedClient, docSetVer func(ctx context.Context, userID string) (int64, error), queryCls classify.QueryClassifier, cfg config.Config) *Orchestrator {
	return &Orchestrator{cache: cache, retriever: retriever, llmClient: llmClient, embedClient: embedClient, docSetVer: docSetVer, queryCls: queryCls, cfg: cfg}
}

// WithMetrics attaches a counter recorder; diagnostics from every
// subsequent Answer call feed it. Optional — a nil Orchestrator.metrics
// silently drops Record calls.
func (o *Orchestrator) WithMetrics(r *metrics.Recorder) *Orchestrator {
	o.metrics = r
	return o
}

// DeleteDocument removes documentID from every index the Orchestrator's
// Retriever reads (ChunkStore, VectorIndex, LexicalIndex), then evicts
// userID's cached answers so a stale citation never survives the
// delete (the ChunkStore's doc_set_version bump already makes Lookup
// reject those entries; InvalidateUser additionally frees the memory
// now rather than waiting for the next Store eviction).
func (o *Orchestrator) DeleteDocument(ctx context.Context, userID, documentID string) error {
	if err := o.retriever.DeleteDocument(ctx, userID, documentID); err != nil {
		return err
	}
	return o.cache.InvalidateUser(ctx, userID)
}

// Answer runs the full §4.7 pipeline for one question.
func (o *Orchestrator) Answer(ctx context.Context, userID, queryText string, conversationHint string, opts Options) model.AnswerResult {
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = o.cfg.Deadlines.Answer
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	diag := model.Diagnostics{}

	queryEmbedding, err := o.embedOne(ctx, queryText)
	if err != nil {
		return errorResult(apperrors.Wrap(apperrors.DependencyUnavailable, err))
	}

	useCache := opts.UseCache == nil || *opts.UseCache
	var docSetVersion int64
	if useCache {
		docSetVersion, _ = o.docSetVer(ctx, userID)
		if entry, ok, _ := o.cache.Lookup(ctx, userID, queryEmbedding, docSetVersion); ok {
			diag.CacheHit = true
			o.metrics.Record(metrics.AnswerEvent{CacheHit: true})
			return model.AnswerResult{AnswerText: entry.AnswerText, Sources: entry.Sources, FromCache: true, Diagnostics: diag}
		}
	}

	// Step 2: rewrite (non-fatal on failure).
	rewritten := o.rewrite(ctx, queryText, conversationHint)

	// Step 3: conditional decomposition.
	qType := model.QueryGeneral
	if o.queryCls != nil {
		qType = o.queryCls.Classify(ctx, rewritten)
	}
	subQueries := o.decompose(ctx, rewritten, qType)
	diag.DecomposedN = len(subQueries) - 1
	if diag.DecomposedN < 0 {
		diag.DecomposedN = 0
	}

	maxIterations := opts.MaxSelfRAGIterations
	if maxIterations <= 0 {
		maxIterations = o.cfg.Orchestrator.MaxSelfRAGIterations
	}

	// Self-RAG loop (§4.7 step 6): retrieve, verify sufficiency, and on
	// "insufficient" reformulate and retry, up to maxIterations times.
	// Exceeding the cap without a sufficient verdict flags the answer
	// low_confidence/degraded rather than erroring (§4.7 step 9).
	var ranked model.RankedContext
	reformulatedN := 0
	iterations := 0
	lowConfidence := false

	for {
		iterations++
		ranked, err = o.retrieveAll(ctx, userID, subQueries)
		if err != nil {
			return errorResult(err)
		}

		if o.verifySufficiency(ctx, rewritten, ranked) == llm.VerdictSufficient {
			break
		}
		if iterations >= maxIterations {
			lowConfidence = true
			break
		}
		reformulatedN++
		subQueries = []string{o.reformulate(ctx, rewritten, ranked)}
	}
	diag.ReformulatedN = reformulatedN
	diag.SelfRAGIterations = iterations
	diag.LowConfidence = lowConfidence
	diag.StrategyTag = ranked.UsedStrategy
	diag.Degraded = ranked.RerankSkipped || lowConfidence

	answerText, sources := o.generate(ctx, queryText, ranked)

	if useCache {
		_ = o.cache.Store(ctx, model.ResponseCacheEntry{
			QueryEmbedding: queryEmbedding, QueryText: queryText, AnswerText: answerText,
			Sources: sources, CreatedAt: time.Now(), UserID: userID, DocSetVersion: docSetVersion,
		})
	}

	o.metrics.Record(metrics.AnswerEvent{
		CacheHit:          false,
		SelfRAGIterations: diag.SelfRAGIterations,
		LowConfidence:     diag.LowConfidence,
		Degraded:          diag.Degraded,
		DecomposedN:       diag.DecomposedN,
		ReformulatedN:     diag.ReformulatedN,
		StrategyTag:       string(diag.StrategyTag),
	})

	return model.AnswerResult{AnswerText: answerText, Sources: sources, Diagnostics: diag}
}

func errorResult(err error) model.AnswerResult {
	result := model.AnswerResult{ErrorKind: string(apperrors.CodeOf(err))}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		result.Suggestion = string(appErr.Suggestion)
	}
	return result
}

func (o *Orchestrator) embedOne(ctx context.Context, text string) ([]float32, error) {
	if len(text) > 8192 {
		text = truncateUTF8(text, 8192)
	}
	vectors, err := o.embedClient.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a multi-byte
// rune (§8 B1).
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

func (o *Orchestrator) rewrite(ctx context.Context, query, hint string) string {
	if o.llmClient == nil {
		return query
	}
	prompt := "Rewrite the following question to resolve pronouns and expand abbreviations, preserving its meaning exactly. " +
		"Conversation context: " + hint + "\n\nQuestion: " + query
	res, err := o.llmClient.Complete(ctx, prompt, llm.SchemaText, time.Now().Add(5*time.Second))
	if err != nil || res == nil || strings.TrimSpace(res.Text) == "" {
		return query
	}
	return res.Text
}

// decompose splits rewritten into 2-4 sub-queries when it looks
// multi-part (§4.7 step 3); otherwise returns it unchanged as the sole
// query.
func (o *Orchestrator) decompose(ctx context.Context, rewritten string, qType model.QueryType) []string {
	if !looksMultiPart(rewritten, qType, o.cfg.Orchestrator.DecomposeLengthChars) || o.llmClient == nil {
		return []string{rewritten}
	}
	res, err := o.llmClient.Complete(ctx, decomposePrompt(rewritten), llm.SchemaStringList, time.Now().Add(5*time.Second))
	if err != nil || len(res.Strings) < 2 {
		return []string{rewritten}
	}
	max := o.cfg.Orchestrator.MaxSubQueries
	if max <= 0 {
		max = 4
	}
	subs := res.Strings
	if len(subs) > max {
		subs = subs[:max]
	}
	return subs
}

func looksMultiPart(query string, qType model.QueryType, lengthThreshold int) bool {
	if strings.Count(query, "?") >= 2 {
		return true
	}
	lower := strings.ToLower(query)
	for _, w := range []string{" and ", " vs ", " vs. ", " versus ", " compared to "} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	if len(query) > lengthThreshold && qType != model.QueryDefinition {
		return true
	}
	return false
}

func decomposePrompt(query string) string {
	return "Split the following question into 2 to 4 atomic sub-questions, each answerable independently.\n\nQuestion: " + query
}

// retrieveAll fans the sub-queries out to the Retriever concurrently,
// unioning results by max fused+rerank score per chunk, and generating
// up to 3 rephrasings per sub-query (§4.7 steps 4-5, §5 fan-out).
func (o *Orchestrator) retrieveAll(ctx context.Context, userID string, queries []string) (model.RankedContext, error) {
	results := make([]model.RankedContext, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			variants, err := o.buildVariants(gctx, q)
			if err != nil {
				return err
			}
			ranked, err := o.retriever.RetrieveMulti(gctx, userID, variants, retrieve.Options{})
			if err != nil {
				return err
			}
			results[i] = ranked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RankedContext{}, err
	}
	return mergeRanked(results), nil
}

func (o *Orchestrator) buildVariants(ctx context.Context, query string) ([]retrieve.QueryVariant, error) {
	embedding, err := o.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	variants := []retrieve.QueryVariant{{Text: query, Embedding: embedding}}

	if o.llmClient == nil || o.cfg.Orchestrator.MaxQueryRephrasings <= 0 {
		return variants, nil
	}
	res, err := o.llmClient.Complete(ctx, rephrasePrompt(query), llm.SchemaStringList, time.Now().Add(5*time.Second))
	if err != nil {
		return variants, nil
	}
	for i, r := range res.Strings {
		if i >= o.cfg.Orchestrator.MaxQueryRephrasings {
			break
		}
		if r == "" {
			continue
		}
		emb, err := o.embedOne(ctx, r)
		if err != nil {
			continue
		}
		variants = append(variants, retrieve.QueryVariant{Text: r, Embedding: emb})
	}
	return variants, nil
}

func rephrasePrompt(query string) string {
	return fmt.Sprintf("Produce up to 3 alternative phrasings of this question that preserve its meaning.\n\nQuestion: %s", query)
}

func mergeRanked(results []model.RankedContext) model.RankedContext {
	best := map[string]model.ContextChunk{}
	order := []string{}
	var triples []model.KGTriple
	seenTriples := map[string]struct{}{}
	strategy := model.StrategyHybrid
	rerankSkipped := false

	for _, r := range results {
		strategy = r.UsedStrategy
		rerankSkipped = rerankSkipped || r.RerankSkipped
		for _, c := range r.Chunks {
			if existing, ok := best[c.ChunkID]; !ok || c.Score > existing.Score {
				if !ok {
					order = append(order, c.ChunkID)
				}
				best[c.ChunkID] = c
			}
		}
		for _, t := range r.Triples {
			key := t.Subject + "|" + t.Predicate + "|" + t.Object
			if _, ok := seenTriples[key]; ok {
				continue
			}
			seenTriples[key] = struct{}{}
			triples = append(triples, t)
		}
	}

	chunks := make([]model.ContextChunk, 0, len(order))
	for _, id := range order {
		chunks = append(chunks, best[id])
	}
	return model.RankedContext{Chunks: chunks, Triples: triples, UsedStrategy: strategy, RerankSkipped: rerankSkipped}
}

// verifySufficiency asks the LLM whether the retrieved context suffices
// (§4.7 step 6); absence of an LLM is treated as sufficient so the
// orchestrator still returns an answer from retrieved context alone.
func (o *Orchestrator) verifySufficiency(ctx context.Context, query string, ranked model.RankedContext) llm.Verdict {
	if o.llmClient == nil {
		return llm.VerdictSufficient
	}
	if len(ranked.Chunks) == 0 {
		return llm.VerdictInsufficient
	}
	summary := contextSummary(ranked)
	res, err := o.llmClient.Complete(ctx, sufficiencyPrompt(query, summary), llm.SchemaVerdict, time.Now().Add(5*time.Second))
	if err != nil {
		return llm.VerdictSufficient
	}
	return res.Verdict
}

func contextSummary(ranked model.RankedContext) string {
	var sb strings.Builder
	for _, c := range ranked.Chunks {
		sb.WriteString(c.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func sufficiencyPrompt(query, summary string) string {
	return "Given the retrieved context below, is it sufficient to answer the question?\n\n" +
		"Question: " + query + "\n\nContext:\n" + summary
}

func (o *Orchestrator) reformulate(ctx context.Context, query string, ranked model.RankedContext) string {
	if o.llmClient == nil {
		return query
	}
	prompt := "The following context was insufficient to answer the question. Reformulate the question to retrieve better context.\n\n" +
		"Question: " + query + "\n\nContext:\n" + contextSummary(ranked)
	res, err := o.llmClient.Complete(ctx, prompt, llm.SchemaText, time.Now().Add(5*time.Second))
	if err != nil || res == nil || strings.TrimSpace(res.Text) == "" {
		return query
	}
	return res.Text
}

// generate produces the final answer with numbered citations (§4.7
// step 7), grounded on the teacher's SimpleSynthesizer.createPrompt
// context-stuffing idiom.
func (o *Orchestrator) generate(ctx context.Context, query string, ranked model.RankedContext) (string, []model.Source) {
	sources := make([]model.Source, len(ranked.Chunks))
	var sb strings.Builder
	sb.WriteString("Context information is below.\n---------------------\n")
	for i, c := range ranked.Chunks {
		sources[i] = model.Source{ChunkID: c.ChunkID, DocTitle: c.DocTitle, Page: c.Page}
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, c.DocTitle, c.ExpandedText)
	}
	if len(ranked.Triples) > 0 {
		sb.WriteString("\nKnown facts:\n")
		for _, t := range ranked.Triples {
			fmt.Fprintf(&sb, "- %s %s %s\n", t.Subject, t.Predicate, t.Object)
		}
	}
	sb.WriteString("---------------------\n")
	sb.WriteString("Given the context information above, answer the query with inline numbered citations like [1].\n")
	fmt.Fprintf(&sb, "Query: %s\nAnswer:", query)

	if o.llmClient == nil {
		return sb.String(), sources
	}
	res, err := o.llmClient.Complete(ctx, sb.String(), llm.SchemaText, time.Now().Add(10*time.Second))
	if err != nil {
		return "", nil
	}
	return res.Text, sources
}
