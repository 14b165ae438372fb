// Package model holds the shared data types of the retrieval core (§3).
package model

import "time"

// SourceType classifies a document for chunking-profile selection (§4.1).
type SourceType string

const (
	SourceTextbook SourceType = "textbook"
	SourcePaper    SourceType = "paper"
	SourceNotes    SourceType = "notes"
	SourceCode     SourceType = "code"
	SourceGeneral  SourceType = "general"
)

// DocumentStatus is the Ingestor's state machine (I4).
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is owned by a user and mutated only by the Ingestor's own
// state transitions (I4).
type Document struct {
	ID         string
	UserID     string
	Title      string
	SourceType SourceType
	PageCount  int
	Status     DocumentStatus
	CreatedAt  time.Time
}

// Chunk is the unit of retrieval. Ordinal is dense within a document (I2).
// ParentID is non-empty when the chunk is a retrieval child of a larger
// parent chunk (§4.1 parent/child).
type Chunk struct {
	ID           string
	DocumentID   string
	UserID       string
	Ordinal      int
	Text         string
	Page         int
	SectionTitle string
	ParentID     string
	DocTitle     string // denormalised for citation/enrichment convenience

	// IsParentRecord marks a synthetic parent chunk (§4.1 parent/child):
	// parents are never embedded or searched directly, only fetched at
	// context-assembly time via getParent.
	IsParentRecord bool
}

// EnrichedText is the text actually submitted for embedding (Glossary:
// Enrichment) — never the raw chunk text.
func (c Chunk) EnrichedText() string {
	return "Document: " + c.DocTitle + " | Section: " + c.SectionTitle + "\n\n" + c.Text
}

// Proposition is an atomic, pronoun-resolved factual statement (§3).
type Proposition struct {
	ID      string
	ChunkID string
	Text    string
}

// KGTriple is an extracted entity-relationship fact (§3). Subject,
// Predicate and Object are stored lowercase-normalised (§9 open question 2).
type KGTriple struct {
	ID        string
	UserID    string
	DocID     string
	ChunkID   string
	Subject   string
	Predicate string
	Object    string
}

// FeedbackRating is the Feedback API's thumbs signal (§6, §C supplement).
type FeedbackRating string

const (
	FeedbackUp   FeedbackRating = "up"
	FeedbackDown FeedbackRating = "down"
)

// Feedback is a weak relevance signal attached to a past answer (§6).
type Feedback struct {
	ID        string
	UserID    string
	QueryID   string
	ChunkID   string
	Rating    FeedbackRating
	Comment   string
	CreatedAt time.Time
}

// ResponseCacheEntry is a cached answer keyed by embedding similarity (§3, §4.5).
type ResponseCacheEntry struct {
	QueryEmbedding []float32
	QueryText      string
	AnswerText     string
	Sources        []Source
	CreatedAt      time.Time
	UserID         string
	DocSetVersion  int64
}

// Source is a citation attached to an answer.
type Source struct {
	ChunkID  string
	DocTitle string
	Page     int
}

// ContextChunk is a retrieved, possibly expanded, chunk ready for generation (§4.6).
type ContextChunk struct {
	ChunkID      string
	Text         string
	ExpandedText string
	DocTitle     string
	Section      string
	Page         int
	Score        float64
}

// StrategyTag records which retrieval path produced a RankedContext (§4.6).
type StrategyTag string

const (
	StrategyHybrid      StrategyTag = "hybrid"
	StrategyLexicalOnly StrategyTag = "lexical_only"
	StrategyVectorOnly  StrategyTag = "vector_only"
)

// RankedContext is the Retriever's public result (§4.6).
type RankedContext struct {
	Chunks        []ContextChunk
	Triples       []KGTriple
	UsedStrategy  StrategyTag
	RerankSkipped bool
}

// QueryType is the label produced by the query classifier (§4.6).
type QueryType string

const (
	QueryDefinition QueryType = "definition"
	QueryComparison QueryType = "comparison"
	QueryCode       QueryType = "code"
	QueryProcedural QueryType = "procedural"
	QueryGeneral    QueryType = "general"
)

// Diagnostics is returned alongside every answer (§4.7 step 9).
type Diagnostics struct {
	CacheHit          bool
	ReformulatedN     int
	DecomposedN       int
	StrategyTag       StrategyTag
	SelfRAGIterations int
	LowConfidence     bool
	Degraded          bool
}

// AnswerResult is the Answer API's return value (§6).
type AnswerResult struct {
	AnswerText  string
	Sources     []Source
	FromCache   bool
	Diagnostics Diagnostics
	ErrorKind   string
	Suggestion  string
}
