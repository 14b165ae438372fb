// Package models holds the provider-agnostic wire shapes every
// iface.LLM implementation (ollama, openai) speaks, and the
// LLMConfig/OptionalConfig construction helpers used to build one.
package models

import "time"

// Role is the speaker of one Message in a chat-style request.
type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)

// Message is one turn of a Chat conversation.
type Message struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// SamplingParams controls decoding; the zero value means "use the
// provider's own default", so a request that sets none of these fields
// never forces a value onto the wire (SamplingParams.ToMap only emits
// non-zero fields).
type SamplingParams struct {
	Temperature      float64
	TopP             float64
	TopK             int
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64
}

// ToMap renders only the fields the caller actually set, so defaults
// stay provider-side. Safe on a nil receiver.
func (o *SamplingParams) ToMap() map[string]interface{} {
	result := make(map[string]interface{})
	if o == nil {
		return result
	}
	if o.Temperature != 0 {
		result["temperature"] = o.Temperature
	}
	if o.TopP != 0 {
		result["top_p"] = o.TopP
	}
	if o.MaxTokens != 0 {
		result["max_tokens"] = o.MaxTokens
	}
	if o.TopK != 0 {
		result["top_k"] = o.TopK
	}
	if o.FrequencyPenalty != 0 {
		result["frequency_penalty"] = o.FrequencyPenalty
	}
	if o.PresencePenalty != 0 {
		result["presence_penalty"] = o.PresencePenalty
	}
	return result
}

// LowTemperature is the SamplingParams a structured-schema Complete
// call (string-list, triples, verdict) asks for: low-temperature
// decoding makes the model's JSON/single-word output far less prone to
// the stray prose that would fail decodeJSONLoose.
func LowTemperature() SamplingParams {
	return SamplingParams{Temperature: 0.1}
}

type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []*Message     `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  SamplingParams `json:"options"`
}

type ChatResponseMetadata struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Content   string                `json:"content"`
	Reasoning string                `json:"reasoning"`
	Metadata  *ChatResponseMetadata `json:"metadata"`
}

type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options SamplingParams `json:"options,omitempty"`
}

type GenerateResponse struct {
	Text             string    `json:"text"`
	Model            string    `json:"model"`
	CreatedAt        time.Time `json:"created_at"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
}

type EmbeddingsRequest struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Content    string `json:"content"`
}

type EmbeddingsResponse struct {
	Embeddings []float32 `json:"embedding"`
}

// Model describes one model a provider has available (ListModels).
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Model       string `json:"model"`
	Description string `json:"description"`
	ContextSize int    `json:"context_size"`
}
