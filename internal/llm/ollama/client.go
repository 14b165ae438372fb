package ollama

import (
	"context"

	"github.com/Klarline/academe/internal/llm/models"
	"github.com/Klarline/academe/internal/llm/transport"
)

type Client struct {
	config *models.LLMConfig
	client *transport.JSONClient
}

func (o *Client) Name() string { return models.OLLAMA }

func (o *Client) ListModels(ctx context.Context) ([]*models.Model, error) {
	var response ListModelResponse
	err := o.client.Get(ctx, "/api/tags", &response)
	if err != nil {
		return nil, err
	}
	results := make([]*models.Model, len(response.Models))
	for idx, model := range response.Models {
		results[idx] = &models.Model{
			ID:    model.Name,
			Name:  model.Name,
			Model: model.Model,
		}
	}
	return results, nil
}

// NewClient wires an Ollama-protocol client against config.Url (or the
// OLLAMA default when omitted), using transport.DefaultConfig's retry
// policy.
func NewClient(optionalConfig ...*models.LLMConfig) (*Client, error) {
	config := models.OptionalConfig(optionalConfig).GetConfig(models.OLLAMA)
	client, err := transport.NewJSONClient(config.Url, transport.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		client: client,
	}, nil
}
