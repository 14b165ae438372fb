package models

import (
	"fmt"
	"os"
	"strings"
)

// Provider names recognized by the env-var and default-URL lookup in
// LLMConfig.WithDefaults.
const (
	OPENAI = "openai"
	OLLAMA = "ollama"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1"
	defaultOllamaURL = "http://localhost:11434"
)

var providerDefaultURLs = map[string]string{
	OPENAI: defaultOpenAIURL,
	OLLAMA: defaultOllamaURL,
}

// LLMConfig is one provider's connection details: where to reach it
// and, for hosted providers, the key to authenticate with.
type LLMConfig struct {
	Provider string
	Url      string
	ApiKey   string
}

// WithDefaults fills in Url/ApiKey from the {PROVIDER}_URL/{PROVIDER}_API_KEY
// environment variables, falling back to providerDefaultURLs, whenever the
// caller left the corresponding field blank. The provider argument wins over
// an already-set c.Provider so a caller can reuse one LLMConfig value across
// providers.
func (c *LLMConfig) WithDefaults(provider string) *LLMConfig {
	if c == nil {
		c = &LLMConfig{}
	}
	c.Provider = provider
	envPrefix := strings.ToUpper(provider)
	if c.Url == "" {
		if v := os.Getenv(fmt.Sprintf("%s_URL", envPrefix)); v != "" {
			c.Url = v
		} else {
			c.Url = providerDefaultURLs[provider]
		}
	}
	if c.ApiKey == "" {
		c.ApiKey = os.Getenv(fmt.Sprintf("%s_API_KEY", envPrefix))
	}
	return c
}

// OptionalConfig is the variadic *LLMConfig a provider constructor accepts:
// zero entries means "build defaults from the environment", one entry is
// used as-is (after WithDefaults fills any gaps).
type OptionalConfig []*LLMConfig

// GetConfig resolves the config to use for provider, applying
// WithDefaults whether or not the caller supplied one.
func (o OptionalConfig) GetConfig(provider string) *LLMConfig {
	if len(o) == 0 || o[0] == nil {
		return (&LLMConfig{}).WithDefaults(provider)
	}
	return o[0].WithDefaults(provider)
}
