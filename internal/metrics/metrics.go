// Package metrics counts the diagnostics AnswerOrchestrator and
// Retriever already compute per call (§4.7 step 9) so they can be
// inspected across a process lifetime instead of just per-answer,
// grounded on Aman-CERP-amanmcp's EngineStats/recordMetrics pattern.
package metrics

import "sync/atomic"

// Recorder accumulates counters. The zero value is usable; a nil
// *Recorder is also safe to call Record on (mirrors recordMetrics's
// "if e.metrics == nil { return }" guard), so wiring it in is optional.
type Recorder struct {
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	selfRAGIterations atomic.Int64
	lowConfidence     atomic.Int64
	degraded          atomic.Int64

	decomposedTotal   atomic.Int64
	reformulatedTotal atomic.Int64

	answers atomic.Int64

	strategyHybrid      atomic.Int64
	strategyLexicalOnly atomic.Int64
	strategyVectorOnly  atomic.Int64
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// AnswerEvent is what AnswerOrchestrator.Answer reports after each call.
type AnswerEvent struct {
	CacheHit          bool
	SelfRAGIterations int
	LowConfidence     bool
	Degraded          bool
	DecomposedN       int
	ReformulatedN     int
	StrategyTag       string
}

// Record folds one answer's diagnostics into the running counters. A
// nil receiver is a no-op.
func (r *Recorder) Record(e AnswerEvent) {
	if r == nil {
		return
	}
	r.answers.Add(1)
	if e.CacheHit {
		r.cacheHits.Add(1)
	} else {
		r.cacheMisses.Add(1)
	}
	r.selfRAGIterations.Add(int64(e.SelfRAGIterations))
	if e.LowConfidence {
		r.lowConfidence.Add(1)
	}
	if e.Degraded {
		r.degraded.Add(1)
	}
	r.decomposedTotal.Add(int64(e.DecomposedN))
	r.reformulatedTotal.Add(int64(e.ReformulatedN))

	switch e.StrategyTag {
	case "lexical_only":
		r.strategyLexicalOnly.Add(1)
	case "vector_only":
		r.strategyVectorOnly.Add(1)
	default:
		r.strategyHybrid.Add(1)
	}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Answers             int64
	CacheHits           int64
	CacheMisses         int64
	SelfRAGIterations   int64
	LowConfidenceCount  int64
	DegradedCount       int64
	DecomposedTotal     int64
	ReformulatedTotal   int64
	StrategyHybrid      int64
	StrategyLexicalOnly int64
	StrategyVectorOnly  int64
}

// CacheHitRate returns cache hits over total answers, 0 if none recorded.
func (s Snapshot) CacheHitRate() float64 {
	if s.Answers == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.Answers)
}

// Snapshot reads the current counter values. Safe on a nil receiver,
// returning the zero Snapshot.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Answers:             r.answers.Load(),
		CacheHits:           r.cacheHits.Load(),
		CacheMisses:         r.cacheMisses.Load(),
		SelfRAGIterations:   r.selfRAGIterations.Load(),
		LowConfidenceCount:  r.lowConfidence.Load(),
		DegradedCount:       r.degraded.Load(),
		DecomposedTotal:     r.decomposedTotal.Load(),
		ReformulatedTotal:   r.reformulatedTotal.Load(),
		StrategyHybrid:      r.strategyHybrid.Load(),
		StrategyLexicalOnly: r.strategyLexicalOnly.Load(),
		StrategyVectorOnly:  r.strategyVectorOnly.Load(),
	}
}
