package metrics

import "testing"

func TestRecorder_SnapshotAccumulates(t *testing.T) {
	r := New()
	r.Record(AnswerEvent{CacheHit: true, SelfRAGIterations: 1, StrategyTag: "hybrid"})
	r.Record(AnswerEvent{CacheHit: false, SelfRAGIterations: 2, DecomposedN: 3, ReformulatedN: 1, Degraded: true, LowConfidence: true, StrategyTag: "lexical_only"})

	snap := r.Snapshot()
	if snap.Answers != 2 {
		t.Fatalf("answers = %d, want 2", snap.Answers)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Fatalf("cache hits/misses = %d/%d, want 1/1", snap.CacheHits, snap.CacheMisses)
	}
	if snap.SelfRAGIterations != 3 {
		t.Fatalf("self-rag iterations = %d, want 3", snap.SelfRAGIterations)
	}
	if snap.DecomposedTotal != 3 || snap.ReformulatedTotal != 1 {
		t.Fatalf("decomposed/reformulated = %d/%d, want 3/1", snap.DecomposedTotal, snap.ReformulatedTotal)
	}
	if snap.LowConfidenceCount != 1 || snap.DegradedCount != 1 {
		t.Fatalf("low confidence/degraded = %d/%d, want 1/1", snap.LowConfidenceCount, snap.DegradedCount)
	}
	if snap.StrategyHybrid != 1 || snap.StrategyLexicalOnly != 1 {
		t.Fatalf("strategy tally wrong: %+v", snap)
	}
	if got := snap.CacheHitRate(); got != 0.5 {
		t.Fatalf("cache hit rate = %v, want 0.5", got)
	}
}

func TestRecorder_NilReceiverIsNoop(t *testing.T) {
	var r *Recorder
	r.Record(AnswerEvent{CacheHit: true})
	if snap := r.Snapshot(); snap.Answers != 0 {
		t.Fatalf("expected zero snapshot from nil recorder, got %+v", snap)
	}
}
