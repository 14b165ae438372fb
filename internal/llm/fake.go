package llm

import (
	"context"
	"time"
)

// FakeLLMClient is a deterministic, canned-response LLMClient for tests,
// grounded on the teacher's MockLLM (iface.LLM) canned-response style but
// speaking the core's own LLMClient contract directly.
type FakeLLMClient struct {
	// CompleteFunc, if set, overrides all default behavior.
	CompleteFunc func(ctx context.Context, prompt string, schema Schema, deadline time.Time) (*Result, error)
}

func (f *FakeLLMClient) Complete(ctx context.Context, prompt string, schema Schema, deadline time.Time) (*Result, error) {
	if f.CompleteFunc != nil {
		return f.CompleteFunc(ctx, prompt, schema, deadline)
	}
	switch schema {
	case SchemaStringList:
		return &Result{Strings: []string{prompt}}, nil
	case SchemaTriples:
		return &Result{Triples: nil}, nil
	case SchemaVerdict:
		return &Result{Verdict: VerdictSufficient}, nil
	default:
		return &Result{Text: prompt}, nil
	}
}

// FakeEmbedClient returns a deterministic embedding derived from text
// length/content so cosine similarity behaves predictably in tests.
type FakeEmbedClient struct {
	Dim      int
	EmbedFunc func(text string) []float32
}

func (f *FakeEmbedClient) Dimensions() int {
	if f.Dim == 0 {
		return 8
	}
	return f.Dim
}

func (f *FakeEmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.EmbedFunc != nil {
			out[i] = f.EmbedFunc(t)
			continue
		}
		out[i] = deterministicEmbedding(t, f.Dimensions())
	}
	return out, nil
}

// deterministicEmbedding hashes text into a small fixed-dimension vector
// so identical texts always map to the same vector, without pulling in a
// real embedding model for tests. The hash is cumulative, so texts that
// differ in one byte generally diverge from that byte on.
func deterministicEmbedding(text string, dim int) []float32 {
	v := make([]float32, dim)
	var h uint32 = 2166136261
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
		v[i%dim] += float32(h%997) / 997.0
	}
	return v
}
