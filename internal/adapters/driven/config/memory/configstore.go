// Package memory provides a settings store that never touches disk. It
// backs tests and runs started with --ephemeral.
package memory

import (
	"maps"

	"github.com/custodia-labs/verity/internal/adapters/driven/config"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in memory. Save and Load do nothing.
type ConfigStore struct {
	config.Values
}

// NewConfigStore creates an empty store, optionally seeded with values.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{}
	_ = s.Update(func(m map[string]any) error {
		for _, values := range seed {
			maps.Copy(m, values)
		}
		return nil
	})
	return s
}

func (s *ConfigStore) Set(key string, value any) error {
	return s.Update(func(m map[string]any) error {
		m[key] = value
		return nil
	})
}

func (s *ConfigStore) Save() error  { return nil }
func (s *ConfigStore) Load() error  { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
