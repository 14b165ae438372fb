package llm

import (
	"context"

	"github.com/Klarline/academe/internal/llm/iface"
	"github.com/Klarline/academe/internal/llm/models"
)

// StubProvider is an in-memory iface.LLM used to exercise providerAdapter
// without a real ollama/openai endpoint. ChatFn/EmbedFn let a test
// script canned responses or errors; both default to a fixed reply.
type StubProvider struct {
	ChatFn  func(r *models.ChatRequest) (*models.ChatResponse, error)
	EmbedFn func(r *models.EmbeddingsRequest) (*models.EmbeddingsResponse, error)
}

var _ iface.LLM = (*StubProvider)(nil)

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) ListModels(ctx context.Context) ([]*models.Model, error) {
	return []*models.Model{{ID: "stub-model", Name: "stub-model", Model: "stub-model"}}, nil
}

func (s *StubProvider) Generate(ctx context.Context, r *models.GenerateRequest) (*models.GenerateResponse, error) {
	return &models.GenerateResponse{Text: "stub generate: " + r.Prompt, Model: r.Model}, nil
}

func (s *StubProvider) Chat(ctx context.Context, r *models.ChatRequest, stream ...func(chunk []byte) error) (*models.ChatResponse, error) {
	if s.ChatFn != nil {
		return s.ChatFn(r)
	}
	return &models.ChatResponse{Content: "stub response"}, nil
}

func (s *StubProvider) Embeddings(ctx context.Context, cr *models.EmbeddingsRequest) (*models.EmbeddingsResponse, error) {
	if s.EmbedFn != nil {
		return s.EmbedFn(cr)
	}
	return &models.EmbeddingsResponse{Embeddings: []float32{1, 0, 0}}, nil
}
