package driven

import "time"

// ConfigStore is a flat view of the settings file. Keys are dotted paths
// such as "retrieval.default_top_k". Typed getters return the zero value
// when a key is absent or holds another type; GetFloat also accepts
// integers and GetDuration parses strings like "250ms".
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string

	// Set records a value and persists it.
	Set(key string, value any) error

	// Save writes the current values back to Path.
	Save() error

	// Load re-reads Path. A missing file leaves the store empty.
	Load() error

	Path() string
}
