// Package embedding builds embedding service adapters from settings.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/verity/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/verity/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/verity/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// New creates the embedding service selected by settings.
func New(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		if settings.Provider.RequiresAPIKey() {
			return nil, fmt.Errorf("%w: %s requires an API key (set OPENAI_API_KEY or embedding.api_key)",
				domain.ErrInvalidConfig, settings.Provider)
		}
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidConfig, settings.Provider)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultEmbeddingModels()[settings.Provider]
	}
	settings.Model = model
	dimensions := settings.ResolvedDimensions()

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollama.New(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: dimensions,
		})

	case domain.AIProviderHashing:
		return hashing.New(dimensions), nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidConfig, settings.Provider)
	}
}

// NewValidated creates an embedding service and validates connectivity.
func NewValidated(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := New(settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s embedder unreachable (%w). Check embedding.base_url or use the hashing provider",
			domain.ErrBackendUnavailable, settings.Provider, err)
	}
	return svc, nil
}
