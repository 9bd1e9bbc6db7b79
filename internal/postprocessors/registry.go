package postprocessors

import (
	"fmt"
	"maps"
	"slices"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// BuilderFunc creates a processor from its section of the pipeline config.
// cfg may be nil.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Registry maps processor names to builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFunc)}
}

// Register adds a builder. Names are unique.
func (r *Registry) Register(name string, builder BuilderFunc) error {
	if name == "" || builder == nil {
		return fmt.Errorf("%w: processor needs a name and a builder", domain.ErrInvalidInput)
	}
	if _, dup := r.builders[name]; dup {
		return fmt.Errorf("%w: processor %q already registered", domain.ErrInvalidConfig, name)
	}
	r.builders[name] = builder
	return nil
}

// Build creates the named processor.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q", domain.ErrUnsupportedType, name)
	}
	proc, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	return proc, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.builders))
}
