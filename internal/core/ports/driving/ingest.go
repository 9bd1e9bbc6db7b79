package driving

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// IngestService builds and maintains collections.
// It is the only writer to the vector index.
type IngestService interface {
	// Ingest chunks, embeds and indexes documents into a collection.
	// Per-document failures are recorded in the report and do not fail the call.
	Ingest(ctx context.Context, collection string, docs []domain.Document, opts domain.IngestOptions) (*domain.IngestReport, error)

	// IngestDocument ingests a single document.
	IngestDocument(ctx context.Context, collection string, doc domain.Document) (*domain.IngestReport, error)

	// IngestSource drains a connector, normalises what it yields and ingests it.
	IngestSource(ctx context.Context, collection string, source driven.Connector, opts domain.IngestOptions) (*domain.IngestReport, error)

	// RemoveDocument deletes a document and its chunks from a collection.
	RemoveDocument(ctx context.Context, collection, documentID string) error
}

// WatchService keeps a collection in step with a watched corpus.
type WatchService interface {
	// Watch applies connector change events until ctx is cancelled.
	Watch(ctx context.Context, collection string, source driven.Connector) error
}
