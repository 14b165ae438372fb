// Package config holds the tunables of the retrieval core, all defaulted
// to the constants named in the specification; YAML only overrides them.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ChunkProfile is one row of the adaptive chunking profile table (§4.1).
type ChunkProfile struct {
	TargetChars  int    `yaml:"target_chars"`
	Overlap      int    `yaml:"overlap"`
	Splitter     string `yaml:"splitter"` // "semantic" | "recursive" | "recursive_code"
	ParentWindow int    `yaml:"parent_window"` // multiple of target chars, 0 = no parent
}

// ChunkingConfig holds one profile per document source type.
type ChunkingConfig struct {
	Textbook ChunkProfile `yaml:"textbook"`
	Paper    ChunkProfile `yaml:"paper"`
	Notes    ChunkProfile `yaml:"notes"`
	Code     ChunkProfile `yaml:"code"`
	General  ChunkProfile `yaml:"general"`
}

func (c ChunkingConfig) ForType(sourceType string) ChunkProfile {
	switch sourceType {
	case "textbook":
		return c.Textbook
	case "paper":
		return c.Paper
	case "notes":
		return c.Notes
	case "code":
		return c.Code
	default:
		return c.General
	}
}

// FusionWeights is an (alpha, beta) pair for lexical/vector score fusion.
type FusionWeights struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

// FusionConfig holds the default fusion weights plus per-query-type overrides (§4.6).
type FusionConfig struct {
	Default    FusionWeights `yaml:"default"`
	Definition FusionWeights `yaml:"definition"`
	Comparison FusionWeights `yaml:"comparison"`
	Code       FusionWeights `yaml:"code"`
	Procedural FusionWeights `yaml:"procedural"`
}

func (f FusionConfig) ForQueryType(qt string) FusionWeights {
	switch qt {
	case "definition":
		return f.Definition
	case "comparison":
		return f.Comparison
	case "code":
		return f.Code
	case "procedural":
		return f.Procedural
	default:
		return f.Default
	}
}

// BM25Config holds the lexical index's scoring parameters (§4.4).
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// CacheConfig holds the ResponseCache's tunables (§4.5). Entries expire
// on whichever comes first: TTL elapsing or DocSetVersion moving past
// the version they were stored under.
type CacheConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	CapacityPerUser     int           `yaml:"capacity_per_user"`
	TTL                 time.Duration `yaml:"ttl"`
}

// RetrievalConfig holds Retriever tunables (§4.6).
type RetrievalConfig struct {
	LexicalTopK    int `yaml:"lexical_top_k"`
	VectorTopK     int `yaml:"vector_top_k"`
	FusedTopK      int `yaml:"fused_top_k"`
	RerankedTopK   int `yaml:"reranked_top_k"`
	SlidingWindow  int `yaml:"sliding_window"`
	KGMaxHops      int `yaml:"kg_max_hops"`
	KGMaxTriples   int `yaml:"kg_max_triples"`
}

// OrchestratorConfig holds AnswerOrchestrator tunables (§4.7).
type OrchestratorConfig struct {
	MaxSelfRAGIterations int `yaml:"max_self_rag_iterations"`
	MaxSubQueries        int `yaml:"max_sub_queries"`
	MaxQueryRephrasings  int `yaml:"max_query_rephrasings"`
	DecomposeLengthChars int `yaml:"decompose_length_chars"`
}

// DeadlinesConfig holds the default request deadlines (§5).
type DeadlinesConfig struct {
	Answer   time.Duration `yaml:"answer"`
	Retrieve time.Duration `yaml:"retrieve"`
}

// IngestConfig holds Ingestor worker-pool and retry tunables (§4.1, §5).
type IngestConfig struct {
	WorkerPoolSize     int           `yaml:"worker_pool_size"`
	EmbedBatchBytes    int           `yaml:"embed_batch_bytes"`
	EmbedMaxAttempts   int           `yaml:"embed_max_attempts"`
	EmbedBackoffBase   time.Duration `yaml:"embed_backoff_base"`
	EmbedBackoffCap    time.Duration `yaml:"embed_backoff_cap"`
	ProcessingReapAfter time.Duration `yaml:"processing_reap_after"`
	QueueCapacity      int           `yaml:"queue_capacity"`
}

// Config is the root configuration of the retrieval core.
type Config struct {
	EmbeddingDim int                `yaml:"embedding_dim"`
	Chunking     ChunkingConfig     `yaml:"chunking"`
	Fusion       FusionConfig       `yaml:"fusion"`
	BM25         BM25Config         `yaml:"bm25"`
	Cache        CacheConfig        `yaml:"cache"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Deadlines    DeadlinesConfig    `yaml:"deadlines"`
	Ingest       IngestConfig       `yaml:"ingest"`
}

// Default returns a Config whose every numeric value matches spec.md verbatim.
func Default() *Config {
	return &Config{
		EmbeddingDim: 768,
		Chunking: ChunkingConfig{
			Textbook: ChunkProfile{TargetChars: 1200, Overlap: 300, Splitter: "semantic", ParentWindow: 3},
			Paper:    ChunkProfile{TargetChars: 800, Overlap: 200, Splitter: "recursive", ParentWindow: 2},
			Notes:    ChunkProfile{TargetChars: 600, Overlap: 100, Splitter: "recursive", ParentWindow: 0},
			Code:     ChunkProfile{TargetChars: 1000, Overlap: 150, Splitter: "recursive_code", ParentWindow: 0},
			General:  ChunkProfile{TargetChars: 1000, Overlap: 200, Splitter: "recursive", ParentWindow: 2},
		},
		Fusion: FusionConfig{
			Default:    FusionWeights{Alpha: 0.3, Beta: 0.7},
			Definition: FusionWeights{Alpha: 0.5, Beta: 0.5},
			Comparison: FusionWeights{Alpha: 0.2, Beta: 0.8},
			Code:       FusionWeights{Alpha: 0.6, Beta: 0.4},
			Procedural: FusionWeights{Alpha: 0.4, Beta: 0.6},
		},
		BM25: BM25Config{K1: 1.2, B: 0.75},
		Cache: CacheConfig{
			SimilarityThreshold: 0.95,
			CapacityPerUser:     50,
			TTL:                 24 * time.Hour,
		},
		Retrieval: RetrievalConfig{
			LexicalTopK:   20,
			VectorTopK:    20,
			FusedTopK:     20,
			RerankedTopK:  5,
			SlidingWindow: 1,
			KGMaxHops:     2,
			KGMaxTriples:  32,
		},
		Orchestrator: OrchestratorConfig{
			MaxSelfRAGIterations: 2,
			MaxSubQueries:        4,
			MaxQueryRephrasings:  3,
			DecomposeLengthChars: 200,
		},
		Deadlines: DeadlinesConfig{
			Answer:   30 * time.Second,
			Retrieve: 5 * time.Second,
		},
		Ingest: IngestConfig{
			WorkerPoolSize:      4,
			EmbedBatchBytes:     8 * 1024,
			EmbedMaxAttempts:    3,
			EmbedBackoffBase:    500 * time.Millisecond,
			EmbedBackoffCap:     8 * time.Second,
			ProcessingReapAfter: 10 * time.Minute,
			QueueCapacity:       256,
		},
	}
}

// Load reads a YAML file and overlays it on top of Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
