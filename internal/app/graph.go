package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/verity/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/verity/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/verity/internal/adapters/driven/config/file"
	"github.com/custodia-labs/verity/internal/adapters/driven/embedding"
	memstore "github.com/custodia-labs/verity/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verity/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/services"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/normalisers"
	"github.com/custodia-labs/verity/internal/normalisers/html"
	"github.com/custodia-labs/verity/internal/normalisers/markdown"
	"github.com/custodia-labs/verity/internal/normalisers/plaintext"
	"github.com/custodia-labs/verity/internal/observability"
	"github.com/custodia-labs/verity/internal/postprocessors"
)

// Environment variables that override stored settings.
const (
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvOllamaHost = "OLLAMA_HOST"
	EnvProvider   = "VERITY_EMBEDDING_PROVIDER"
	EnvRedisAddr  = "VERITY_REDIS_ADDR"
)

// Options locate configuration and data.
type Options struct {
	// ConfigDir holds config.toml. Empty means ~/.verity.
	ConfigDir string

	// DataDir holds the SQLite index. Empty means ~/.verity/data.
	DataDir string

	// Ephemeral keeps the index in memory for the life of the process.
	Ephemeral bool

	// PingEmbedder checks the embedding provider is reachable before use.
	PingEmbedder bool

	// Store replaces config.toml as the settings source when set.
	Store driven.ConfigStore
}

// Graph is the wired set of services.
type Graph struct {
	Config  domain.Config
	Metrics *observability.Metrics

	Index      driven.VectorIndex
	Embedder   driven.EmbeddingService
	Normaliser driven.NormaliserRegistry

	Ingest     *services.IngestService
	Watch      *services.WatchService
	Query      *services.QueryService
	Grounding  *services.GroundingService
	Collection *services.CollectionService
	Routing    *services.RoutingService

	closers []func() error
}

// Build loads configuration and wires every service.
// The caller must Close the graph.
func Build(ctx context.Context, opts Options) (*Graph, error) {
	store := opts.Store
	if store == nil {
		fs, err := file.NewConfigStore(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		store = fs
	}
	cfg, err := services.LoadConfig(store)
	if err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return BuildWithConfig(ctx, cfg, opts)
}

// BuildWithConfig wires every service from an already loaded config.
func BuildWithConfig(ctx context.Context, cfg domain.Config, opts Options) (*Graph, error) {
	g := &Graph{Config: cfg, Metrics: observability.NewMetrics()}

	embedder, err := g.buildEmbedder(ctx, opts.PingEmbedder)
	if err != nil {
		_ = g.Close()
		return nil, err
	}
	g.Embedder = embedder

	if opts.Ephemeral {
		logger.Debug("Using in-memory index")
		g.Index = memstore.NewVectorIndex()
	} else {
		store, err := sqlite.NewStore(opts.DataDir)
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		g.Index = store
	}
	g.closers = append(g.closers, g.Index.Close)

	registry := postprocessors.NewRegistry()
	if err := postprocessors.RegisterDefaults(registry); err != nil {
		_ = g.Close()
		return nil, err
	}
	pipeline, err := postprocessors.BuildPipeline(registry, cfg.DefaultPipelineConfig())
	if err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	g.Normaliser = normalisers.NewRegistry(plaintext.New(), markdown.New(), html.New())

	g.Ingest = services.NewIngestService(g.Embedder, g.Index, pipeline, g.Normaliser, cfg.Backend, g.Metrics)
	g.Watch = services.NewWatchService(g.Ingest, g.Normaliser)
	g.Query = services.NewQueryService(g.Embedder, g.Index, cfg, g.Metrics)
	g.Grounding = services.NewGroundingService(g.Embedder, g.Index, cfg, g.Metrics)
	g.Collection = services.NewCollectionService(g.Index, cfg.Retrieval.DefaultCollection)
	g.Routing = services.NewRoutingService(g.Query)
	return g, nil
}

// buildEmbedder stacks cache over retries over the provider adapter.
func (g *Graph) buildEmbedder(ctx context.Context, ping bool) (driven.EmbeddingService, error) {
	cfg := g.Config
	newBase := func() (driven.EmbeddingService, error) { return embedding.New(cfg.Embedding) }
	if ping {
		newBase = func() (driven.EmbeddingService, error) { return embedding.NewValidated(ctx, cfg.Embedding) }
	}
	base, err := newBase()
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	var emb driven.EmbeddingService = services.NewResilientEmbedder(base, cfg.Backend, g.Metrics)

	switch cfg.Cache.Backend {
	case domain.CacheMemory:
		emb = services.NewCachingEmbedder(emb, memory.New(cfg.Cache.Size), cfg.Cache.TTL)
	case domain.CacheRedis:
		cache, err := redis.New(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		emb = services.NewCachingEmbedder(emb, cache, cfg.Cache.TTL)
	case domain.CacheNone:
	}
	g.closers = append(g.closers, emb.Close)

	logger.Debug("Embedder: %s (%d dimensions, cache %s)", emb.ModelName(), emb.Dimensions(), cfg.Cache.Backend)
	return emb, nil
}

// Close releases every resource in reverse order of acquisition.
func (g *Graph) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	g.closers = nil
	return errors.Join(errs...)
}

// applyEnv lets the environment (and .env files) supply secrets and endpoints.
func applyEnv(cfg *domain.Config) {
	if p := os.Getenv(EnvProvider); p != "" {
		cfg.Embedding.Provider = domain.AIProvider(p)
		cfg.Embedding.Model = domain.DefaultEmbeddingModels()[cfg.Embedding.Provider]
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv(EnvOpenAIKey)
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == domain.AIProviderOllama {
		cfg.Embedding.BaseURL = os.Getenv(EnvOllamaHost)
	}
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		cfg.Cache.Backend = domain.CacheRedis
		cfg.Cache.RedisAddr = addr
	}
}
