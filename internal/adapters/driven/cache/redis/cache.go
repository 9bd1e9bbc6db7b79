// Package redis provides an embedding cache shared across processes through Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/verity/internal/adapters/driven/storage/vectors"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// KeyPrefix namespaces cache keys in a shared Redis.
const KeyPrefix = "verity:embedding:"

const dialTimeout = 5 * time.Second

// Cache stores vectors as little-endian float32 strings.
type Cache struct {
	rdb *goredis.Client
}

// New connects to addr and verifies the server answers PING.
func New(ctx context.Context, addr string) (*Cache, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", domain.ErrInvalidConfig)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w: %w", domain.ErrBackendUnavailable, err)
	}

	return &Cache{rdb: rdb}, nil
}

// Get returns the cached vector for key.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.rdb.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := vectors.Decode(raw)
	if err != nil {
		// A corrupt entry behaves as a miss and is overwritten on the next Set.
		return nil, false, nil
	}
	return vec, true, nil
}

// Set stores a vector with the given ttl (0 = no expiry).
func (c *Cache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, KeyPrefix+key, vectors.Encode(vector), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
