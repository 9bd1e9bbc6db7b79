// Package file persists settings as a TOML file in the config directory
// (~/.verity/config.toml by default).
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/verity/internal/adapters/driven/config"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// FileName is the settings file inside the config directory.
const FileName = "config.toml"

// ConfigStore reads and writes config.toml. TOML tables are flattened to
// dotted keys on load and rebuilt on save, so "[retrieval] default_top_k"
// is addressed as "retrieval.default_top_k".
type ConfigStore struct {
	config.Values
	path string
}

// NewConfigStore opens the settings file in configDir, creating the
// directory if needed. An empty configDir selects ~/.verity. A missing
// file is an empty store; a malformed one is an error.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate home directory: %w", err)
		}
		configDir = filepath.Join(home, ".verity")
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	s := &ConfigStore{path: filepath.Join(configDir, FileName)}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.path, err)
	}
	return s, nil
}

// Set records value and rewrites the file. On a write failure, or when
// key collides with an existing table ("retrieval" vs
// "retrieval.default_top_k"), the store is left unchanged.
func (s *ConfigStore) Set(key string, value any) error {
	return s.Update(func(m map[string]any) error {
		m[key] = value
		return s.write(m)
	})
}

// Save rewrites the file from the current values.
func (s *ConfigStore) Save() error {
	return s.Update(s.write)
}

// Load replaces the current values with the file's contents.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return err
	}

	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	s.Replace(flattenMap(tree, ""))
	return nil
}

func (s *ConfigStore) Path() string {
	return s.path
}

func (s *ConfigStore) write(m map[string]any) error {
	tree, err := nestMap(m)
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(tree)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// flattenMap turns {"a": {"b": 1}} into {"a.b": 1}.
func flattenMap(tree map[string]any, prefix string) map[string]any {
	flat := make(map[string]any, len(tree))
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			maps.Copy(flat, flattenMap(sub, k))
			continue
		}
		flat[k] = v
	}
	return flat
}

// nestMap rebuilds TOML tables from dotted keys. A key that is both a
// value and a table prefix cannot be represented.
func nestMap(flat map[string]any) (map[string]any, error) {
	tree := make(map[string]any)
	for key, value := range flat {
		path := strings.Split(key, ".")
		node := tree
		for _, part := range path[:len(path)-1] {
			if _, ok := node[part]; !ok {
				node[part] = make(map[string]any)
			}
			child, ok := node[part].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("config key %q conflicts with value at %q", key, part)
			}
			node = child
		}
		leaf := path[len(path)-1]
		if _, isTable := node[leaf].(map[string]any); isTable {
			return nil, fmt.Errorf("config key %q conflicts with table of the same name", key)
		}
		node[leaf] = value
	}
	return tree, nil
}
