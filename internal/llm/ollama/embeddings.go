package ollama

import (
	"context"

	"github.com/Klarline/academe/internal/apperrors"
	"github.com/Klarline/academe/internal/llm/models"
)

type OllamaEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type OllamaEmbeddingResponse struct {
	Model string `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *Client) Embeddings(ctx context.Context, cr *models.EmbeddingsRequest) (*models.EmbeddingsResponse, error) {
	req := OllamaEmbeddingRequest{
		Model: cr.Model,
		Input: cr.Content,
	}
	var resp OllamaEmbeddingResponse
	err := o.client.Post(ctx, "/api/embed", req, &resp)
	if err != nil {
		return nil, err
	} else if len(resp.Embeddings) == 0 {
		return nil, apperrors.New(apperrors.DependencyUnavailable, "no embeddings found in the response", nil)
	}
	result := &models.EmbeddingsResponse{
		Embeddings: resp.Embeddings[0],
	}
	return result, nil
}
