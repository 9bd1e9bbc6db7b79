// Package postprocessors turns normalised documents into enriched chunks.
package postprocessors

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/observability"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in order: the first creates chunks from the
// document, the rest rewrite them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline. Processors run in the order given.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process chunks doc. Blank chunks are dropped; a chunk that names another
// document is a processor bug and fails the run.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if len(p.processors) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no processors", domain.ErrInvalidConfig)
	}

	ctx, span := observability.StartSpan(ctx, "verity.postprocess",
		attribute.String("verity.document_id", doc.ID),
		attribute.StringSlice("verity.processors", p.Names()),
	)
	defer span.End()

	var chunks []domain.Chunk
	for _, proc := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := proc.Process(ctx, doc, chunks)
		if err != nil {
			observability.RecordError(span, err)
			return nil, fmt.Errorf("processor %s: %w", proc.Name(), err)
		}
		logger.Debug("%s: %s produced %d chunks", doc.ID, proc.Name(), len(out))
		chunks = out
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if c.DocumentID != doc.ID {
			err := fmt.Errorf("%w: chunk %s belongs to %q, not %q", domain.ErrMalformedDocument, c.ID, c.DocumentID, doc.ID)
			observability.RecordError(span, err)
			return nil, err
		}
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		kept = append(kept, c)
	}

	span.SetAttributes(attribute.Int("verity.chunks", len(kept)))
	return kept, nil
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}
