// Package config holds the flat key/value view shared by the settings
// stores. Keys are dotted paths ("retrieval.default_top_k"); values keep
// whatever type the decoder or caller produced.
package config

import (
	"maps"
	"sync"
	"time"
)

// Values is a concurrency-safe flat map with typed accessors. The zero
// value is empty and ready to use. Getters return the zero value of their
// type for absent keys and for values of another type.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

// Get returns the raw value stored under key.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

func (v *Values) GetString(key string) string {
	s, _ := lookup[string](v, key)
	return s
}

func (v *Values) GetBool(key string) bool {
	b, _ := lookup[bool](v, key)
	return b
}

// GetInt accepts int and the int64 that TOML decodes integers into.
func (v *Values) GetInt(key string) int {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

// GetFloat accepts any numeric value, so "threshold = 1" reads as 1.0.
func (v *Values) GetFloat(key string) float64 {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// GetDuration parses strings such as "250ms" and passes time.Duration
// values through.
func (v *Values) GetDuration(key string) time.Duration {
	val, _ := v.Get(key)
	switch d := val.(type) {
	case time.Duration:
		return d
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

// GetStringSlice keeps the string elements of a decoded array.
func (v *Values) GetStringSlice(key string) []string {
	val, _ := v.Get(key)
	switch s := val.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Update runs fn with the map locked for writing. fn may mutate m; if it
// returns an error, the map is restored to its state before the call.
func (v *Values) Update(fn func(m map[string]any) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.m == nil {
		v.m = make(map[string]any)
	}
	before := maps.Clone(v.m)
	if err := fn(v.m); err != nil {
		v.m = before
		return err
	}
	return nil
}

// Replace swaps in a new map. A nil map empties the store.
func (v *Values) Replace(m map[string]any) {
	if m == nil {
		m = make(map[string]any)
	}
	v.mu.Lock()
	v.m = m
	v.mu.Unlock()
}

// Snapshot returns a copy of the current values.
func (v *Values) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.m)
}

func lookup[T any](v *Values, key string) (T, bool) {
	val, ok := v.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := val.(T)
	return t, ok
}
