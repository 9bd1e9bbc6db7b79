package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// PostProcessor is one stage of chunk production. The first stage of a
// pipeline receives nil chunks and splits the document; later stages
// annotate the chunks they are given (section, department, key terms).
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline turns a normalised document into indexable chunks.
// Every returned chunk belongs to doc and has non-blank content.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
