package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("retrieval.default_top_k", 5))
	require.NoError(t, store.Set("retrieval.default_top_k", 7))

	val, ok := store.Get("retrieval.default_top_k")
	assert.True(t, ok)
	assert.Equal(t, 7, val)

	_, ok = store.Get("missing")
	assert.False(t, ok)

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, 7, store.GetInt("retrieval.default_top_k"), "Load must not discard values")
	assert.Equal(t, ":memory:", store.Path())
}

func TestNewConfigStore_Seeded(t *testing.T) {
	store := NewConfigStore(
		map[string]any{"embedding.provider": "hashing", "retrieval.default_top_k": 3},
		map[string]any{"retrieval.default_top_k": 4},
	)

	assert.Equal(t, "hashing", store.GetString("embedding.provider"))
	assert.Equal(t, 4, store.GetInt("retrieval.default_top_k"), "later seeds win")
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"str":       "hashing",
		"int":       42,
		"int64":     int64(64),
		"float":     0.75,
		"bool":      true,
		"duration":  "250ms",
		"bad_dur":   "soon",
		"typed_dur": 2 * time.Second,
		"slice":     []any{"a", 1, "b"},
		"strings":   []string{"x"},
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("str"), "hashing"},
		{"string wrong type", store.GetString("int"), ""},
		{"int", store.GetInt("int"), 42},
		{"int from int64", store.GetInt("int64"), 64},
		{"int from float", store.GetInt("float"), 0},
		{"int missing", store.GetInt("missing"), 0},
		{"float", store.GetFloat("float"), 0.75},
		{"float from int", store.GetFloat("int"), 42.0},
		{"float wrong type", store.GetFloat("str"), 0.0},
		{"bool", store.GetBool("bool"), true},
		{"bool wrong type", store.GetBool("str"), false},
		{"duration string", store.GetDuration("duration"), 250 * time.Millisecond},
		{"duration typed", store.GetDuration("typed_dur"), 2 * time.Second},
		{"duration unparsable", store.GetDuration("bad_dur"), time.Duration(0)},
		{"slice of any", store.GetStringSlice("slice"), []string{"a", "b"}},
		{"slice of strings", store.GetStringSlice("strings"), []string{"x"}},
		{"slice missing", store.GetStringSlice("missing"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key%d", n))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key%d", i)))
	}
}
