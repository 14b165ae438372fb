package openai

import (
	"context"
	"errors"
	"io"

	"github.com/Klarline/academe/internal/apperrors"
	"github.com/Klarline/academe/internal/llm/iface"
	"github.com/Klarline/academe/internal/llm/models"
	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
}

// Ensure Client implements iface.LLM
var _ iface.LLM = (*Client)(nil)

func NewClient(optionalConfig ...*models.LLMConfig) (*Client, error) {
	config := models.OptionalConfig(optionalConfig).GetConfig(models.OPENAI)
	openaiConfig := openai.DefaultConfig(config.ApiKey)
	openaiConfig.BaseURL = config.Url
	client := openai.NewClientWithConfig(openaiConfig)

	return &Client{
		client: client,
	}, nil
}

func NewClientWithOpenAIClient(client *openai.Client) *Client {
	return &Client{
		client: client,
	}
}

func (c *Client) Name() string { return models.OPENAI }

func (c *Client) ListModels(ctx context.Context) ([]*models.Model, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}

	result := make([]*models.Model, len(resp.Models))
	for i, m := range resp.Models {
		result[i] = &models.Model{
			ID:    m.ID,
			Name:  m.ID, // the OpenAI API has no separate display name
			Model: m.ID,
		}
	}
	return result, nil
}

func (c *Client) Generate(ctx context.Context, r *models.GenerateRequest) (*models.GenerateResponse, error) {
	req := openai.ChatCompletionRequest{
		Model: r.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: r.Prompt},
		},
	}
	applySampling(&req, r.Options)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.DependencyUnavailable, "openai returned no choices", nil)
	}

	return &models.GenerateResponse{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *Client) Chat(ctx context.Context, r *models.ChatRequest, stream ...func(chunk []byte) error) (*models.ChatResponse, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, len(r.Messages))
	for i, msg := range r.Messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    r.Model,
		Messages: openaiMessages,
		Stream:   len(stream) > 0 && stream[0] != nil,
	}
	applySampling(&req, r.Options)

	if req.Stream {
		return c.streamChat(ctx, req, stream[0])
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.DependencyUnavailable, "openai returned no choices", nil)
	}

	return &models.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Metadata: &models.ChatResponseMetadata{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// applySampling maps the subset of SamplingParams the OpenAI chat
// completion API accepts; a zero SamplingParams leaves req untouched so
// the API's own defaults apply.
func applySampling(req *openai.ChatCompletionRequest, opts models.SamplingParams) {
	if opts.Temperature != 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if opts.TopP != 0 {
		req.TopP = float32(opts.TopP)
	}
	if opts.MaxTokens != 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.FrequencyPenalty != 0 {
		req.FrequencyPenalty = float32(opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != 0 {
		req.PresencePenalty = float32(opts.PresencePenalty)
	}
}

func (c *Client) streamChat(ctx context.Context, req openai.ChatCompletionRequest, callback func(chunk []byte) error) (*models.ChatResponse, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	defer stream.Close()

	var fullContent string
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		fullContent += delta
		if err := callback([]byte(delta)); err != nil {
			return nil, err
		}
	}

	// Usage stats aren't aggregated across stream chunks; callers that
	// need token counts should use the non-streaming path.
	return &models.ChatResponse{Content: fullContent}, nil
}

func (c *Client) Embeddings(ctx context.Context, cr *models.EmbeddingsRequest) (*models.EmbeddingsResponse, error) {
	model := openai.EmbeddingModel(cr.Model)
	if model == "" {
		model = openai.SmallEmbedding3
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{cr.Content},
		Model: model,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.New(apperrors.DependencyUnavailable, "openai returned no embeddings", nil)
	}

	return &models.EmbeddingsResponse{
		Embeddings: resp.Data[0].Embedding,
	}, nil
}
