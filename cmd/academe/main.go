// Command academe wires the retrieval core's components against a
// chosen backend and runs a single ingest-then-answer demonstration,
// grounded on the teacher's examples/rag/v2/chromem/main.go wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Klarline/academe/internal/answer"
	"github.com/Klarline/academe/internal/chunkstore"
	"github.com/Klarline/academe/internal/classify"
	"github.com/Klarline/academe/internal/config"
	"github.com/Klarline/academe/internal/ingest"
	"github.com/Klarline/academe/internal/lexicalindex"
	"github.com/Klarline/academe/internal/llm"
	"github.com/Klarline/academe/internal/llm/ollama"
	"github.com/Klarline/academe/internal/llm/openai"
	"github.com/Klarline/academe/internal/metrics"
	"github.com/Klarline/academe/internal/rerank"
	"github.com/Klarline/academe/internal/responsecache"
	"github.com/Klarline/academe/internal/retrieve"
	"github.com/Klarline/academe/internal/vectorindex"
	"github.com/Klarline/academe/internal/vectorindex/lancedb"
)

func main() {
	var (
		filePath   = flag.String("file", "", "document to ingest before answering")
		userID     = flag.String("user", "demo-user", "owner of the ingested document")
		query      = flag.String("query", "", "question to answer after ingestion")
		provider   = flag.String("provider", "fake", "llm provider: fake | ollama | openai")
		chatModel  = flag.String("chat-model", "llama3", "chat model name for the chosen provider")
		embedModel = flag.String("embed-model", "nomic-embed-text", "embedding model name for the chosen provider")
		dbPath     = flag.String("vector-db", "", "vector store path: empty=in-memory chromem, otherwise a LanceDB directory")
		dbPath2    = flag.String("chromem-path", "", "persistent chromem path, overrides -vector-db for chromem")
		deleteDoc  = flag.String("delete-doc", "", "document id to delete (skips ingest/answer)")
	)
	flag.Parse()

	if *deleteDoc == "" && (*filePath == "" || *query == "") {
		log.Fatal("usage: academe -file <path> -query <question> [-provider fake|ollama|openai] | -delete-doc <document-id>")
	}

	cfg := config.Default()
	ctx := context.Background()

	llmClient, embedClient := buildClients(*provider, *chatModel, *embedModel, cfg.EmbeddingDim)

	store, err := chunkstore.Open("./academe.db")
	if err != nil {
		log.Fatalf("open chunk store: %v", err)
	}
	defer store.Close()

	vector, err := buildVectorIndex(*dbPath, *dbPath2)
	if err != nil {
		log.Fatalf("open vector index: %v", err)
	}

	lexical, err := lexicalindex.NewBleveIndex(64, chunkLoader(store))
	if err != nil {
		log.Fatalf("open lexical index: %v", err)
	}

	ingestor := ingest.New(store, vector, lexical, llmClient, embedClient, *cfg)
	retriever := retrieve.New(store, lexical, vector, rerank.NoOp{}, classify.NewPatternClassifier(), *cfg)
	cache := responsecache.NewLRUCache(cfg.Cache.SimilarityThreshold, cfg.Cache.CapacityPerUser, cfg.Cache.TTL)
	recorder := metrics.New()
	orchestrator := answer.New(cache, retriever, llmClient, embedClient, store.DocSetVersion, classify.NewPatternClassifier(), *cfg).WithMetrics(recorder)

	if *deleteDoc != "" {
		if err := orchestrator.DeleteDocument(ctx, *userID, *deleteDoc); err != nil {
			log.Fatalf("delete document: %v", err)
		}
		fmt.Printf("Deleted document %s for user %s\n", *deleteDoc, *userID)
		return
	}

	text, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("read file: %v", err)
	}

	fmt.Printf("Ingesting %s...\n", *filePath)
	doc, err := ingestor.Ingest(ctx, *userID, *filePath, text, *filePath, nil, ingest.Callbacks{
		OnProgress: func(p ingest.Progress) {
			fmt.Printf("  [%s] %d/%d %s\n", p.Stage, p.CurrentUnit, p.TotalUnits, p.Message)
		},
		OnFailed: func(_ string, err error) {
			fmt.Printf("  ingestion failed: %v\n", err)
		},
	})
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}
	fmt.Printf("Ingested document %s (%s)\n\n", doc.ID, doc.SourceType)

	fmt.Printf("Query: %s\n", *query)
	result := orchestrator.Answer(ctx, *userID, *query, "", answer.Options{})
	if result.ErrorKind != "" {
		log.Fatalf("answer failed: %s (%s)", result.ErrorKind, result.Suggestion)
	}

	fmt.Printf("\nAnswer: %s\n\n", result.AnswerText)
	fmt.Printf("Sources:\n")
	for i, s := range result.Sources {
		fmt.Printf("  [%d] %s\n", i+1, s.DocTitle)
	}
	fmt.Printf("\nDiagnostics: cache_hit=%v decomposed_n=%d reformulated_n=%d strategy=%s self_rag_iterations=%d degraded=%v\n",
		result.Diagnostics.CacheHit, result.Diagnostics.DecomposedN, result.Diagnostics.ReformulatedN,
		result.Diagnostics.StrategyTag, result.Diagnostics.SelfRAGIterations, result.Diagnostics.Degraded)

	snap := recorder.Snapshot()
	fmt.Printf("Metrics: answers=%d cache_hit_rate=%.2f low_confidence=%d degraded=%d\n",
		snap.Answers, snap.CacheHitRate(), snap.LowConfidenceCount, snap.DegradedCount)
}

func buildClients(provider, chatModel, embedModel string, dim int) (llm.LLMClient, llm.EmbedClient) {
	switch provider {
	case "ollama":
		client, err := ollama.NewClient()
		if err != nil {
			log.Fatalf("ollama client: %v", err)
		}
		adapter := llm.NewProviderAdapter(client, chatModel, embedModel, dim)
		return adapter, adapter
	case "openai":
		client, err := openai.NewClient()
		if err != nil {
			log.Fatalf("openai client: %v", err)
		}
		adapter := llm.NewProviderAdapter(client, chatModel, embedModel, dim)
		return adapter, adapter
	default:
		return &llm.FakeLLMClient{}, &llm.FakeEmbedClient{Dim: dim}
	}
}

func chunkLoader(store *chunkstore.SQLiteStore) lexicalindex.ChunkLoader {
	return func(ctx context.Context, userID string) ([]struct{ ChunkID, Text string }, error) {
		chunks, err := store.ListChunksByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		out := make([]struct{ ChunkID, Text string }, 0, len(chunks))
		for _, c := range chunks {
			if c.IsParentRecord {
				continue
			}
			out = append(out, struct{ ChunkID, Text string }{ChunkID: c.ID, Text: c.Text})
		}
		return out, nil
	}
}

func buildVectorIndex(vectorDB, chromemPath string) (vectorindex.VectorIndex, error) {
	switch {
	case chromemPath != "":
		return vectorindex.NewPersistent(chromemPath)
	case vectorDB != "":
		return lancedb.Open(vectorDB)
	default:
		return vectorindex.NewInMemory(), nil
	}
}
