package models

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalConfig_GetConfig(t *testing.T) {
	cases := []struct {
		name       string
		provider   string
		envURL     string
		envKey     string
		input      OptionalConfig
		wantURL    string
		wantApiKey string
	}{
		{
			name:     "openai falls back to default url with no env and no config",
			provider: OPENAI,
			wantURL:  defaultOpenAIURL,
		},
		{
			name:     "ollama falls back to default url with no env and no config",
			provider: OLLAMA,
			wantURL:  defaultOllamaURL,
		},
		{
			name:       "env vars win when no config supplied",
			provider:   OPENAI,
			envURL:     "https://proxy.example.com/v1",
			envKey:     "env-key",
			wantURL:    "https://proxy.example.com/v1",
			wantApiKey: "env-key",
		},
		{
			name:       "explicit config wins over env vars",
			provider:   OPENAI,
			envURL:     "https://proxy.example.com/v1",
			envKey:     "env-key",
			input:      OptionalConfig{{Url: "https://explicit.example.com", ApiKey: "explicit-key"}},
			wantURL:    "https://explicit.example.com",
			wantApiKey: "explicit-key",
		},
		{
			name:     "unknown provider has no default url",
			provider: "anthropic",
			wantURL:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envPrefix := strings.ToUpper(tc.provider)
			if tc.envURL != "" {
				require.NoError(t, os.Setenv(envPrefix+"_URL", tc.envURL))
				defer os.Unsetenv(envPrefix + "_URL")
			}
			if tc.envKey != "" {
				require.NoError(t, os.Setenv(envPrefix+"_API_KEY", tc.envKey))
				defer os.Unsetenv(envPrefix + "_API_KEY")
			}
			got := tc.input.GetConfig(tc.provider)
			require.NotNil(t, got)
			assert.Equal(t, tc.provider, got.Provider)
			assert.Equal(t, tc.wantURL, got.Url)
			assert.Equal(t, tc.wantApiKey, got.ApiKey)
		})
	}
}

func TestLLMConfig_WithDefaults_NilReceiver(t *testing.T) {
	var c *LLMConfig
	got := c.WithDefaults(OLLAMA)
	require.NotNil(t, got)
	assert.Equal(t, defaultOllamaURL, got.Url)
}
