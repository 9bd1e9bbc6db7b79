package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/postprocessors/chunker"
	"github.com/custodia-labs/verity/internal/postprocessors/enricher"
)

// RegisterDefaults registers the chunker and enricher.
func RegisterDefaults(r *Registry) error {
	if err := r.Register(chunker.Name, buildChunker); err != nil {
		return err
	}
	return r.Register(enricher.Name, buildEnricher)
}

// BuildPipeline constructs a pipeline from configuration, in the configured order.
func BuildPipeline(r *Registry, cfg domain.PipelineConfig) (*Pipeline, error) {
	if len(cfg.Processors) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no processors", domain.ErrInvalidConfig)
	}
	procs := make([]driven.PostProcessor, 0, len(cfg.Processors))
	for _, name := range cfg.Processors {
		proc, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}
	logger.Debug("Pipeline: %v", cfg.Processors)
	return NewPipeline(procs...), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Maximum characters per chunk (default: 1000)
//   - overlap (int): Trailing characters carried into the next chunk (default: 100)
//   - min_size (int): Size below which symbol-only sections are dropped (default: 50)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}
	if _, ok := cfg["min_size"]; ok {
		opts = append(opts, chunker.WithMinSize(getIntFromConfig(cfg, "min_size")))
	}

	return chunker.New(opts...), nil
}

// buildEnricher creates an enricher from generic config.
// Supported config keys:
//   - max_terms (int): Key terms kept per chunk (default: 5)
func buildEnricher(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []enricher.Option
	if n := getIntFromConfig(cfg, "max_terms"); n > 0 {
		opts = append(opts, enricher.WithMaxTerms(n))
	}
	return enricher.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
