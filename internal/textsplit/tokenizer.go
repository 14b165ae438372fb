package textsplitter

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures how many model tokens a string would cost. The
// Ingestor uses it only to warn when a chunk exceeds the embedding
// model's token limit; the 8KB budgets (B1) are enforced in bytes and
// Adaptive's chunking profile budgets in characters.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter using the tiktoken encoding OpenAI
// assigns to model (falling back to gpt-3.5-turbo's encoding, which is
// shared by every embedding model academe currently targets).
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("resolve tiktoken encoding for %s: %w", model, err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// Count returns the number of tokens text would encode to.
func (t *TokenCounter) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
