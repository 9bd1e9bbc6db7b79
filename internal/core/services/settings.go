package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkMaxChars     = "chunking.max_chars"
	keyChunkOverlap      = "chunking.overlap_chars"
	keyChunkMinChars     = "chunking.min_chunk_chars"
	keyDefaultTopK       = "retrieval.default_top_k"
	keyMaxTopK           = "retrieval.max_top_k"
	keyMultiQueryTopK    = "retrieval.multi_query_top_k"
	keyRelevanceFloor    = "retrieval.relevance_floor"
	keyDefaultCollection = "retrieval.default_collection"
	keyMaxParallel       = "retrieval.max_parallel"
	keyMaxQuestionChars  = "retrieval.max_question_chars"
	keySupported         = "grounding.supported_threshold"
	keyPartial           = "grounding.partial_threshold"
	keyCorroboration     = "grounding.corroboration_weight"
	keyGroundingTopK     = "grounding.default_top_k"
	keyMaxAnswerWords    = "synthesis.max_answer_words"
	keyMaxSnippetChars   = "synthesis.max_snippet_chars"
	keyMinParagraphChars = "synthesis.min_paragraph_chars"
	keyDuplicate         = "synthesis.duplicate_threshold"
	keyEmbedTimeout      = "backend.embed_timeout"
	keySearchTimeout     = "backend.search_timeout"
	keyMaxAttempts       = "backend.max_attempts"
	keyInitialBackoff    = "backend.initial_backoff"
	keyMaxBackoff        = "backend.max_backoff"
	keyRequestsPerSecond = "backend.requests_per_second"
	keyBurst             = "backend.burst"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDimensions   = "embedding.dimensions"
	keyCacheBackend      = "cache.backend"
	keyCacheSize         = "cache.size"
	keyCacheRedisAddr    = "cache.redis_addr"
	keyCacheTTL          = "cache.ttl"
)

// SettingKeys lists every key LoadConfig reads, in file order.
func SettingKeys() []string {
	return []string{
		keyChunkMaxChars, keyChunkOverlap, keyChunkMinChars,
		keyDefaultTopK, keyMaxTopK, keyMultiQueryTopK, keyRelevanceFloor,
		keyDefaultCollection, keyMaxParallel, keyMaxQuestionChars,
		keySupported, keyPartial, keyCorroboration, keyGroundingTopK,
		keyMaxAnswerWords, keyMaxSnippetChars, keyMinParagraphChars, keyDuplicate,
		keyEmbedTimeout, keySearchTimeout, keyMaxAttempts, keyInitialBackoff,
		keyMaxBackoff, keyRequestsPerSecond, keyBurst,
		keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey, keyEmbedDimensions,
		keyCacheBackend, keyCacheSize, keyCacheRedisAddr, keyCacheTTL,
	}
}

// LoadConfig overlays stored settings on domain.DefaultConfig and validates
// the result. Keys absent from the store keep their defaults.
func LoadConfig(store driven.ConfigStore) (domain.Config, error) {
	cfg := domain.DefaultConfig()
	if store == nil {
		return cfg, nil
	}

	l := loader{store: store}

	l.int(keyChunkMaxChars, &cfg.Chunking.MaxChars)
	l.int(keyChunkOverlap, &cfg.Chunking.OverlapChars)
	l.int(keyChunkMinChars, &cfg.Chunking.MinChunkChars)

	l.int(keyDefaultTopK, &cfg.Retrieval.DefaultTopK)
	l.int(keyMaxTopK, &cfg.Retrieval.MaxTopK)
	l.int(keyMultiQueryTopK, &cfg.Retrieval.MultiQueryTopK)
	l.float(keyRelevanceFloor, &cfg.Retrieval.RelevanceFloor)
	l.string(keyDefaultCollection, &cfg.Retrieval.DefaultCollection)
	l.int(keyMaxParallel, &cfg.Retrieval.MaxParallel)
	l.int(keyMaxQuestionChars, &cfg.Retrieval.MaxQuestionChars)

	l.float(keySupported, &cfg.Grounding.SupportedThreshold)
	l.float(keyPartial, &cfg.Grounding.PartialThreshold)
	l.float(keyCorroboration, &cfg.Grounding.CorroborationWeight)
	l.int(keyGroundingTopK, &cfg.Grounding.DefaultTopK)

	l.int(keyMaxAnswerWords, &cfg.Synthesis.MaxAnswerWords)
	l.int(keyMaxSnippetChars, &cfg.Synthesis.MaxSnippetChars)
	l.int(keyMinParagraphChars, &cfg.Synthesis.MinParagraphChars)
	l.float(keyDuplicate, &cfg.Synthesis.DuplicateThreshold)

	l.duration(keyEmbedTimeout, &cfg.Backend.EmbedTimeout)
	l.duration(keySearchTimeout, &cfg.Backend.SearchTimeout)
	l.int(keyMaxAttempts, &cfg.Backend.MaxAttempts)
	l.duration(keyInitialBackoff, &cfg.Backend.InitialBackoff)
	l.duration(keyMaxBackoff, &cfg.Backend.MaxBackoff)
	l.float(keyRequestsPerSecond, &cfg.Backend.RequestsPerSecond)
	l.int(keyBurst, &cfg.Backend.Burst)

	var provider string
	if l.string(keyEmbedProvider, &provider) {
		cfg.Embedding.Provider = domain.AIProvider(provider)
		cfg.Embedding.Model = domain.DefaultEmbeddingModels()[cfg.Embedding.Provider]
	}
	l.string(keyEmbedModel, &cfg.Embedding.Model)
	l.string(keyEmbedBaseURL, &cfg.Embedding.BaseURL)
	l.string(keyEmbedAPIKey, &cfg.Embedding.APIKey)
	l.int(keyEmbedDimensions, &cfg.Embedding.Dimensions)

	var backend string
	if l.string(keyCacheBackend, &backend) {
		cfg.Cache.Backend = domain.CacheBackend(backend)
	}
	l.int(keyCacheSize, &cfg.Cache.Size)
	l.string(keyCacheRedisAddr, &cfg.Cache.RedisAddr)
	l.duration(keyCacheTTL, &cfg.Cache.TTL)

	if l.err != nil {
		return cfg, l.err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", store.Path(), err)
	}
	return cfg, nil
}

// loader copies present keys into config fields. The first unparsable
// value is kept in err.
type loader struct {
	store driven.ConfigStore
	err   error
}

func (l *loader) has(key string) bool {
	_, ok := l.store.Get(key)
	return ok
}

func (l *loader) int(key string, dst *int) {
	if l.has(key) {
		*dst = l.store.GetInt(key)
	}
}

func (l *loader) float(key string, dst *float64) {
	if l.has(key) {
		*dst = l.store.GetFloat(key)
	}
}

func (l *loader) string(key string, dst *string) bool {
	if !l.has(key) {
		return false
	}
	*dst = l.store.GetString(key)
	return true
}

func (l *loader) duration(key string, dst *time.Duration) {
	if !l.has(key) {
		return
	}
	d := l.store.GetDuration(key)
	if raw, ok := l.store.Get(key); ok && d == 0 {
		if str, isStr := raw.(string); isStr {
			if _, err := time.ParseDuration(str); err != nil && l.err == nil {
				l.err = fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfig, key, err)
				return
			}
		}
	}
	*dst = d
}
