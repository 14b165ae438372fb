// Package iface is the seam between a concrete LLM provider (ollama,
// openai, ...) and llm.providerAdapter, which turns whichever one is
// configured into the core's provider-agnostic LLMClient/EmbedClient.
package iface

import (
	"context"

	"github.com/Klarline/academe/internal/llm/models"
)

// LLM is the shape every provider package (ollama.Client, openai.Client)
// implements; providerAdapter is the only thing that talks to it.
type LLM interface {
	// Name identifies the provider for logging and metrics tagging.
	Name() string
	ListModels(ctx context.Context) ([]*models.Model, error)
	Generate(ctx context.Context, r *models.GenerateRequest) (*models.GenerateResponse, error)
	Chat(ctx context.Context, r *models.ChatRequest, stream ...func(chunk []byte) error) (*models.ChatResponse, error)
	Embeddings(ctx context.Context, cr *models.EmbeddingsRequest) (*models.EmbeddingsResponse, error)
}
