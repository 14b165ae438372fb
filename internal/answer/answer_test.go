package answer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klarline/academe/internal/chunkstore"
	"github.com/Klarline/academe/internal/classify"
	"github.com/Klarline/academe/internal/config"
	"github.com/Klarline/academe/internal/ingest"
	"github.com/Klarline/academe/internal/lexicalindex"
	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/responsecache"
	"github.com/Klarline/academe/internal/retrieve"
	"github.com/Klarline/academe/internal/vectorindex"
)

type testRig struct {
	store   *chunkstore.SQLiteStore
	vector  *vectorindex.ChromemIndex
	lexical *lexicalindex.BleveIndex
	ig      *ingest.Ingestor
	orch    *Orchestrator
	embed   *llm.FakeEmbedClient
	llmc    *llm.FakeLLMClient
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	store, err := chunkstore.Open(":memory:")
	require.NoError(t, err)
	lex, err := lexicalindex.NewBleveIndex(8, nil)
	require.NoError(t, err)
	vec := vectorindex.NewInMemory()

	embed := &llm.FakeEmbedClient{Dim: 8}
	fakeLLM := &llm.FakeLLMClient{}

	cfg := config.Default()
	ig := ingest.New(store, vec, lex, fakeLLM, embed, *cfg)

	retriever := retrieve.New(store, lex, vec, nil, classify.NewPatternClassifier(), *cfg)
	cache := responsecache.NewLRUCache(cfg.Cache.SimilarityThreshold, cfg.Cache.CapacityPerUser, cfg.Cache.TTL)
	orch := New(cache, retriever, fakeLLM, embed, store.DocSetVersion, classify.NewPatternClassifier(), *cfg)

	return &testRig{store: store, vector: vec, lexical: lex, ig: ig, orch: orch, embed: embed, llmc: fakeLLM}
}

func TestOrchestrator_Answer_CacheHitOnSimilarRephrasing(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.embed.EmbedFunc = func(text string) []float32 {
		return []float32{1, 0, 0, 0, 0, 0, 0, 0}
	}

	_, err := rig.ig.Ingest(ctx, "u1", "Cell Biology", []byte("Mitochondria are the powerhouse of the cell and generate ATP."), "notes.txt", nil, ingest.Callbacks{})
	require.NoError(t, err)

	first := rig.orch.Answer(ctx, "u1", "what do mitochondria do?", "", Options{})
	require.Empty(t, first.ErrorKind)
	assert.False(t, first.FromCache)
	assert.NotEmpty(t, first.AnswerText)

	second := rig.orch.Answer(ctx, "u1", "what is the function of mitochondria?", "", Options{})
	require.Empty(t, second.ErrorKind)
	assert.True(t, second.FromCache)
	assert.True(t, second.Diagnostics.CacheHit)
	assert.Equal(t, first.AnswerText, second.AnswerText)
}

func TestOrchestrator_Answer_CacheMissAfterDocumentDeleted(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	rig.embed.EmbedFunc = func(text string) []float32 { return []float32{1, 0, 0, 0, 0, 0, 0, 0} }

	doc, err := rig.ig.Ingest(ctx, "u1", "Cell Biology", []byte("Mitochondria generate ATP through oxidative phosphorylation."), "notes.txt", nil, ingest.Callbacks{})
	require.NoError(t, err)

	first := rig.orch.Answer(ctx, "u1", "what do mitochondria do?", "", Options{})
	require.Empty(t, first.ErrorKind)
	assert.False(t, first.FromCache)

	queryVec := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	before, err := rig.vector.Search(ctx, "u1", queryVec, 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, before, "ingest must have populated the vector index")

	require.NoError(t, rig.orch.DeleteDocument(ctx, "u1", doc.ID))

	second := rig.orch.Answer(ctx, "u1", "what do mitochondria do?", "", Options{})
	assert.False(t, second.Diagnostics.CacheHit)

	after, err := rig.vector.Search(ctx, "u1", queryVec, 10, nil)
	require.NoError(t, err)
	for _, hit := range after {
		for _, b := range before {
			assert.NotEqual(t, b.ChunkID, hit.ChunkID, "deleted chunk id must not survive in VectorIndex")
		}
	}

	lexHits, err := rig.lexical.Search(ctx, "u1", "mitochondria", 10)
	require.NoError(t, err)
	for _, hit := range lexHits {
		for _, b := range before {
			assert.NotEqual(t, b.ChunkID, hit.ChunkID, "deleted chunk id must not survive in LexicalIndex")
		}
	}
}

func TestOrchestrator_Answer_DecomposesMultiPartQuestion(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	rig.embed.EmbedFunc = func(text string) []float32 { return []float32{0, 1, 0, 0, 0, 0, 0, 0} }

	_, err := rig.ig.Ingest(ctx, "u1", "Stats Notes", []byte("PCA reduces dimensionality by projecting onto principal components. LDA maximises class separability."), "notes.txt", nil, ingest.Callbacks{})
	require.NoError(t, err)

	rig.llmc.CompleteFunc = func(ctx context.Context, prompt string, schema llm.Schema, deadline time.Time) (*llm.Result, error) {
		switch schema {
		case llm.SchemaStringList:
			if strings.Contains(prompt, "Split the following question") {
				return &llm.Result{Strings: []string{"What is PCA?", "What is LDA?", "Give Python code for PCA."}}, nil
			}
			return &llm.Result{Strings: nil}, nil
		case llm.SchemaVerdict:
			return &llm.Result{Verdict: llm.VerdictSufficient}, nil
		default:
			return &llm.Result{Text: "PCA and LDA compared. [1]"}, nil
		}
	}

	res := rig.orch.Answer(ctx, "u1", "Compare PCA and LDA and give Python code for PCA", "", Options{})
	require.Empty(t, res.ErrorKind)
	assert.GreaterOrEqual(t, res.Diagnostics.DecomposedN, 2)
}

func TestOrchestrator_Answer_SelfRAGExhaustsAndFlagsLowConfidence(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	rig.embed.EmbedFunc = func(text string) []float32 { return []float32{0, 0, 1, 0, 0, 0, 0, 0} }

	rig.llmc.CompleteFunc = func(ctx context.Context, prompt string, schema llm.Schema, deadline time.Time) (*llm.Result, error) {
		switch schema {
		case llm.SchemaVerdict:
			return &llm.Result{Verdict: llm.VerdictInsufficient}, nil
		case llm.SchemaStringList:
			return &llm.Result{Strings: nil}, nil
		default:
			return &llm.Result{Text: prompt}, nil
		}
	}

	res := rig.orch.Answer(ctx, "u1", "What is quantum entanglement?", "", Options{})
	require.Empty(t, res.ErrorKind)
	assert.True(t, res.Diagnostics.LowConfidence)
	assert.True(t, res.Diagnostics.Degraded)
	assert.Equal(t, rig.orch.cfg.Orchestrator.MaxSelfRAGIterations, res.Diagnostics.SelfRAGIterations)
}

func TestOrchestrator_Answer_NoLLMStillReturnsAnswerFromContext(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	rig.embed.EmbedFunc = func(text string) []float32 { return []float32{0, 0, 0, 1, 0, 0, 0, 0} }
	rig.orch.llmClient = nil

	_, err := rig.ig.Ingest(ctx, "u1", "Notes", []byte("Ohm's law states voltage equals current times resistance."), "notes.txt", nil, ingest.Callbacks{})
	require.NoError(t, err)

	res := rig.orch.Answer(ctx, "u1", "What does Ohm's law state?", "", Options{})
	require.Empty(t, res.ErrorKind)
	assert.Contains(t, res.AnswerText, "Ohm")
	assert.Equal(t, 1, res.Diagnostics.SelfRAGIterations)
	assert.False(t, res.Diagnostics.LowConfidence)
}

func TestOrchestrator_Answer_EmptyCorpusReturnsNoSources(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	rig.embed.EmbedFunc = func(text string) []float32 { return []float32{0, 0, 0, 0, 1, 0, 0, 0} }
	rig.llmc.CompleteFunc = func(ctx context.Context, prompt string, schema llm.Schema, deadline time.Time) (*llm.Result, error) {
		if schema == llm.SchemaVerdict {
			return &llm.Result{Verdict: llm.VerdictSufficient}, nil
		}
		return &llm.Result{Text: prompt, Strings: nil}, nil
	}

	res := rig.orch.Answer(ctx, "u1", "What is dark matter?", "", Options{})
	require.Empty(t, res.ErrorKind)
	assert.Empty(t, res.Sources)
}
