// Package memory provides an in-process LRU embedding cache.
package memory

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// DefaultSize is the entry capacity used when none is given.
const DefaultSize = 4096

type entry struct {
	key     string
	vector  []float32
	expires time.Time
}

// Cache is a size-bounded LRU of embedding vectors.
type Cache struct {
	mu    sync.Mutex
	size  int
	ll    *list.List
	items map[string]*list.Element
	now   func() time.Time
}

// New creates a cache holding at most size entries.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		size:  size,
		ll:    list.New(),
		items: make(map[string]*list.Element, size),
		now:   time.Now,
	}
}

// Get returns a copy of the cached vector for key.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.remove(el)
		return nil, false, nil
	}
	c.ll.MoveToFront(el)
	return slices.Clone(e.vector), true, nil
}

// Set stores a copy of vector, evicting the least recently used entry when full.
func (c *Cache) Set(_ context.Context, key string, vector []float32, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.vector = slices.Clone(vector)
		e.expires = expires
		c.ll.MoveToFront(el)
		return nil
	}

	el := c.ll.PushFront(&entry{key: key, vector: slices.Clone(vector), expires: expires})
	c.items[key] = el
	for c.ll.Len() > c.size {
		c.remove(c.ll.Back())
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Close drops all entries.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
	return nil
}

func (c *Cache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
