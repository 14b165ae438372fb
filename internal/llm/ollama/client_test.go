package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Klarline/academe/internal/llm/models"
	"github.com/Klarline/academe/internal/llm/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Cleanup(srv.Close)
	jc, err := transport.NewJSONClient(srv.URL, transport.DefaultConfig())
	require.NoError(t, err)
	return &Client{config: &models.LLMConfig{Provider: models.OLLAMA, Url: srv.URL}, client: jc}
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ListModelResponse{
			Models: []*OllamaModel{{Name: "llama3", Model: "llama3:8b"}},
		})
	}))
	client := newTestClient(t, srv)

	out, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "llama3", out[0].ID)
	assert.Equal(t, "llama3:8b", out[0].Model)
}

func TestClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req OllamaChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		_ = json.NewEncoder(w).Encode(OllamaChatCompletionResponse{
			Message: &models.Message{Role: models.AssistantRole, Content: "<think>reasoning</think>the answer"},
		})
	}))
	client := newTestClient(t, srv)

	resp, err := client.Chat(context.Background(), &models.ChatRequest{
		Model:    "llama3",
		Messages: []*models.Message{{Role: models.UserRole, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", resp.Content)
	assert.Equal(t, "reasoning", resp.Reasoning)
}

func TestClient_Embeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_ = json.NewEncoder(w).Encode(OllamaEmbeddingResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	client := newTestClient(t, srv)

	out, err := client.Embeddings(context.Background(), &models.EmbeddingsRequest{Model: "nomic-embed-text", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, out.Embeddings)
}

func TestClient_EmbeddingsEmptyResponseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaEmbeddingResponse{})
	}))
	client := newTestClient(t, srv)

	_, err := client.Embeddings(context.Background(), &models.EmbeddingsRequest{Model: "m", Content: "x"})
	assert.Error(t, err)
}
