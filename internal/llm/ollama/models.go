package ollama

import "time"

// OllamaModel is the subset of ollama's /api/tags entry Client.ListModels
// actually surfaces; the full API response carries a lot more (modelfile,
// template, per-quantization details) that academe has no use for.
type OllamaModel struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ListModelResponse struct {
	Models []*OllamaModel `json:"models"`
}
