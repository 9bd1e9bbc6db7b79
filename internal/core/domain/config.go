package domain

import (
	"errors"
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderHashing is the deterministic offline feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs without network access to a third party.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderHashing:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderHashing,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:  "all-minilm",
		AIProviderOpenAI:  "text-embedding-3-small",
		AIProviderHashing: "fnv-hash-384",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Offline
		"fnv-hash-384": 384,
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the known dimension of Model (0 = look up).
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns the configured or known dimension for the model.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// ChunkingConfig bounds chunk sizes.
type ChunkingConfig struct {
	// MaxChars is the maximum chunk length in characters.
	MaxChars int

	// OverlapChars is the trailing context carried into continuation chunks.
	OverlapChars int

	// MinChunkChars is the size below which fragments are merged or dropped.
	MinChunkChars int
}

// RetrievalConfig controls query-time retrieval.
type RetrievalConfig struct {
	// DefaultTopK is the number of chunks retrieved when none is requested.
	DefaultTopK int

	// MaxTopK is the largest accepted top_k.
	MaxTopK int

	// MultiQueryTopK is the default top_k for batch queries.
	MultiQueryTopK int

	// RelevanceFloor is the similarity below which a chunk is not evidence.
	RelevanceFloor float64

	// DefaultCollection is queried when no collection is named.
	DefaultCollection string

	// MaxParallel bounds concurrent questions in a batch.
	MaxParallel int

	// MaxQuestionChars rejects oversized questions.
	MaxQuestionChars int
}

// GroundingConfig controls confidence scoring and verdicts.
type GroundingConfig struct {
	// SupportedThreshold is the minimum confidence for SUPPORTED.
	SupportedThreshold float64

	// PartialThreshold is the minimum confidence for PARTIALLY_SUPPORTED
	// and for a query result to count as grounded.
	PartialThreshold float64

	// CorroborationWeight scales the contribution of secondary evidence.
	CorroborationWeight float64

	// DefaultTopK is the number of candidates for grounding checks.
	DefaultTopK int
}

// SynthesisConfig controls extractive answer assembly.
type SynthesisConfig struct {
	// MaxAnswerWords truncates long answers.
	MaxAnswerWords int

	// MaxSnippetChars bounds citation snippets.
	MaxSnippetChars int

	// MinParagraphChars ignores short paragraphs when a longer one exists.
	MinParagraphChars int

	// DuplicateThreshold is the token Jaccard above which parts are dropped.
	DuplicateThreshold float64
}

// BackendConfig holds timeout and retry budgets for the embedder and index.
type BackendConfig struct {
	// EmbedTimeout bounds a single embedder call.
	EmbedTimeout time.Duration

	// SearchTimeout bounds a single index call.
	SearchTimeout time.Duration

	// MaxAttempts is the total number of tries per call.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// RequestsPerSecond rate-limits embedder calls (0 = unlimited).
	RequestsPerSecond float64

	// Burst is the token bucket size when rate limiting.
	Burst int
}

// CacheBackend selects the embedding cache implementation.
type CacheBackend string

// Available cache backends.
const (
	CacheNone   CacheBackend = "none"
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// IsValid returns true if the cache backend is recognised.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheNone, CacheMemory, CacheRedis:
		return true
	default:
		return false
	}
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Backend selects the implementation.
	Backend CacheBackend

	// Size is the entry capacity of the memory cache.
	Size int

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string

	// TTL expires cached vectors (0 = never).
	TTL time.Duration
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// Config is the complete engine configuration.
type Config struct {
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Grounding GroundingConfig
	Synthesis SynthesisConfig
	Backend   BackendConfig
	Embedding EmbeddingSettings
	Cache     CacheConfig
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Chunking: ChunkingConfig{
			MaxChars:      1000,
			OverlapChars:  100,
			MinChunkChars: 50,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:       5,
			MaxTopK:           50,
			MultiQueryTopK:    3,
			RelevanceFloor:    0.5,
			DefaultCollection: DefaultCollection,
			MaxParallel:       4,
			MaxQuestionChars:  4000,
		},
		Grounding: GroundingConfig{
			SupportedThreshold:  0.75,
			PartialThreshold:    0.4,
			CorroborationWeight: 0.25,
			DefaultTopK:         3,
		},
		Synthesis: SynthesisConfig{
			MaxAnswerWords:     500,
			MaxSnippetChars:    200,
			MinParagraphChars:  50,
			DuplicateThreshold: 0.8,
		},
		Backend: BackendConfig{
			EmbedTimeout:   30 * time.Second,
			SearchTimeout:  10 * time.Second,
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Burst:          1,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderHashing,
			Model:    "fnv-hash-384",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Size:    4096,
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration
// derived from the chunking settings.
func (c Config) DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "enricher"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Chunking.MaxChars,
				"overlap":    c.Chunking.OverlapChars,
				"min_size":   c.Chunking.MinChunkChars,
			},
		},
	}
}

// Validate checks every field is in range. All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Chunking.MaxChars <= 0 {
		bad("chunking.max_chars must be positive, got %d", c.Chunking.MaxChars)
	}
	if c.Chunking.OverlapChars < 0 || c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		bad("chunking.overlap_chars must be in [0, max_chars), got %d", c.Chunking.OverlapChars)
	}
	if c.Chunking.MinChunkChars < 0 || c.Chunking.MinChunkChars >= c.Chunking.MaxChars {
		bad("chunking.min_chunk_chars must be in [0, max_chars), got %d", c.Chunking.MinChunkChars)
	}

	if c.Retrieval.MaxTopK <= 0 {
		bad("retrieval.max_top_k must be positive, got %d", c.Retrieval.MaxTopK)
	}
	if c.Retrieval.DefaultTopK <= 0 || c.Retrieval.DefaultTopK > c.Retrieval.MaxTopK {
		bad("retrieval.default_top_k must be in [1, max_top_k], got %d", c.Retrieval.DefaultTopK)
	}
	if c.Retrieval.MultiQueryTopK <= 0 || c.Retrieval.MultiQueryTopK > c.Retrieval.MaxTopK {
		bad("retrieval.multi_query_top_k must be in [1, max_top_k], got %d", c.Retrieval.MultiQueryTopK)
	}
	if c.Retrieval.RelevanceFloor < -1 || c.Retrieval.RelevanceFloor > 1 {
		bad("retrieval.relevance_floor must be in [-1, 1], got %v", c.Retrieval.RelevanceFloor)
	}
	if err := ValidateCollectionName(c.Retrieval.DefaultCollection); err != nil {
		bad("retrieval.default_collection %q is not a valid name", c.Retrieval.DefaultCollection)
	}
	if c.Retrieval.MaxParallel <= 0 {
		bad("retrieval.max_parallel must be positive, got %d", c.Retrieval.MaxParallel)
	}
	if c.Retrieval.MaxQuestionChars <= 0 {
		bad("retrieval.max_question_chars must be positive, got %d", c.Retrieval.MaxQuestionChars)
	}

	g := c.Grounding
	if g.PartialThreshold < 0 || g.PartialThreshold > 1 || g.SupportedThreshold < 0 || g.SupportedThreshold > 1 {
		bad("grounding thresholds must be in [0, 1]")
	}
	if g.PartialThreshold > g.SupportedThreshold {
		bad("grounding.partial_threshold %v exceeds supported_threshold %v", g.PartialThreshold, g.SupportedThreshold)
	}
	if g.CorroborationWeight < 0 || g.CorroborationWeight > 1 {
		bad("grounding.corroboration_weight must be in [0, 1], got %v", g.CorroborationWeight)
	}
	if g.DefaultTopK <= 0 || g.DefaultTopK > c.Retrieval.MaxTopK {
		bad("grounding.default_top_k must be in [1, max_top_k], got %d", g.DefaultTopK)
	}

	s := c.Synthesis
	if s.MaxAnswerWords <= 0 {
		bad("synthesis.max_answer_words must be positive, got %d", s.MaxAnswerWords)
	}
	if s.MaxSnippetChars <= 0 {
		bad("synthesis.max_snippet_chars must be positive, got %d", s.MaxSnippetChars)
	}
	if s.MinParagraphChars < 0 {
		bad("synthesis.min_paragraph_chars must not be negative, got %d", s.MinParagraphChars)
	}
	if s.DuplicateThreshold <= 0 || s.DuplicateThreshold > 1 {
		bad("synthesis.duplicate_threshold must be in (0, 1], got %v", s.DuplicateThreshold)
	}

	b := c.Backend
	if b.EmbedTimeout <= 0 || b.SearchTimeout <= 0 {
		bad("backend timeouts must be positive")
	}
	if b.MaxAttempts <= 0 {
		bad("backend.max_attempts must be positive, got %d", b.MaxAttempts)
	}
	if b.InitialBackoff < 0 || b.MaxBackoff < b.InitialBackoff {
		bad("backend backoff must satisfy 0 <= initial <= max")
	}
	if b.RequestsPerSecond < 0 {
		bad("backend.requests_per_second must not be negative, got %v", b.RequestsPerSecond)
	}
	if b.RequestsPerSecond > 0 && b.Burst <= 0 {
		bad("backend.burst must be positive when rate limiting, got %d", b.Burst)
	}

	if !c.Embedding.Provider.IsValid() {
		bad("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	if !c.Cache.Backend.IsValid() {
		bad("cache.backend %q is not supported", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheMemory && c.Cache.Size <= 0 {
		bad("cache.size must be positive for the memory cache, got %d", c.Cache.Size)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisAddr == "" {
		bad("cache.redis_addr is required for the redis cache")
	}

	return errors.Join(errs...)
}
