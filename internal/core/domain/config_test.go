package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig_Valid tests the defaults pass validation
func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Retrieval.DefaultTopK)
	assert.Equal(t, 3, cfg.Retrieval.MultiQueryTopK)
	assert.Equal(t, 0.5, cfg.Retrieval.RelevanceFloor)
	assert.Equal(t, 0.75, cfg.Grounding.SupportedThreshold)
	assert.Equal(t, 0.4, cfg.Grounding.PartialThreshold)
	assert.Equal(t, 500, cfg.Synthesis.MaxAnswerWords)
	assert.Equal(t, 200, cfg.Synthesis.MaxSnippetChars)
	assert.Equal(t, DefaultCollection, cfg.Retrieval.DefaultCollection)
}

// TestConfig_Validate tests each rejected field
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"overlap equals max chars", func(c *Config) { c.Chunking.OverlapChars = c.Chunking.MaxChars }},
		{"overlap exceeds max chars", func(c *Config) { c.Chunking.OverlapChars = 2000 }},
		{"zero max chars", func(c *Config) { c.Chunking.MaxChars = 0 }},
		{"zero default top_k", func(c *Config) { c.Retrieval.DefaultTopK = 0 }},
		{"negative default top_k", func(c *Config) { c.Retrieval.DefaultTopK = -1 }},
		{"default top_k above max", func(c *Config) { c.Retrieval.DefaultTopK = 51 }},
		{"inverted thresholds", func(c *Config) {
			c.Grounding.PartialThreshold = 0.8
			c.Grounding.SupportedThreshold = 0.6
		}},
		{"threshold above one", func(c *Config) { c.Grounding.SupportedThreshold = 1.5 }},
		{"floor out of range", func(c *Config) { c.Retrieval.RelevanceFloor = 2 }},
		{"bad collection", func(c *Config) { c.Retrieval.DefaultCollection = "Bad Name!" }},
		{"zero attempts", func(c *Config) { c.Backend.MaxAttempts = 0 }},
		{"zero embed timeout", func(c *Config) { c.Backend.EmbedTimeout = 0 }},
		{"backoff inverted", func(c *Config) {
			c.Backend.InitialBackoff = time.Second
			c.Backend.MaxBackoff = time.Millisecond
		}},
		{"rate limit without burst", func(c *Config) {
			c.Backend.RequestsPerSecond = 5
			c.Backend.Burst = 0
		}},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "anthropic" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheRedis }},
		{"duplicate threshold zero", func(c *Config) { c.Synthesis.DuplicateThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

// TestConfig_Validate_ReportsAll tests that multiple problems are joined
func TestConfig_Validate_ReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retrieval.DefaultTopK = 0
	cfg.Backend.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_top_k")
	assert.Contains(t, err.Error(), "max_attempts")
}

// TestConfig_DefaultPipelineConfig tests the pipeline inherits chunk sizes
func TestConfig_DefaultPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunking.MaxChars = 600
	cfg.Chunking.OverlapChars = 60

	pc := cfg.DefaultPipelineConfig()

	assert.Equal(t, []string{"chunker", "enricher"}, pc.Processors)
	assert.Equal(t, 600, pc.GetProcessorConfig("chunker")["chunk_size"])
	assert.Equal(t, 60, pc.GetProcessorConfig("chunker")["overlap"])
	assert.Nil(t, pc.GetProcessorConfig("enricher"))

	var empty PipelineConfig
	assert.Nil(t, empty.GetProcessorConfig("chunker"))
}

// TestAIProvider tests provider helpers
func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider    AIProvider
		valid       bool
		needsKey    bool
		local       bool
		description string
	}{
		{AIProviderOllama, true, false, true, "Ollama (local)"},
		{AIProviderOpenAI, true, true, false, "OpenAI (cloud)"},
		{AIProviderHashing, true, false, true, "Feature hashing (offline)"},
		{AIProvider("other"), false, false, false, unknownDescription},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.needsKey, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.local, tt.provider.IsLocal())
			assert.Equal(t, tt.description, tt.provider.Description())
		})
	}
}

// TestEmbeddingSettings tests configuration checks and dimension lookup
func TestEmbeddingSettings(t *testing.T) {
	openai := EmbeddingSettings{Provider: AIProviderOpenAI, Model: "text-embedding-3-small"}
	assert.False(t, openai.IsConfigured())
	openai.APIKey = "sk-test"
	assert.True(t, openai.IsConfigured())
	assert.Equal(t, 1536, openai.ResolvedDimensions())

	custom := EmbeddingSettings{Provider: AIProviderOllama, Model: "custom", Dimensions: 256}
	assert.Equal(t, 256, custom.ResolvedDimensions())

	unknown := EmbeddingSettings{Provider: AIProviderOllama, Model: "custom"}
	assert.Equal(t, 0, unknown.ResolvedDimensions())
}
