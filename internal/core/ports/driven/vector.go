package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// VectorRecord is one chunk with its embedding, ready to be indexed.
type VectorRecord struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// VectorIndex stores chunk vectors per collection and answers similarity search.
//
// Every mutation is atomic: concurrent readers observe either the previous or
// the new state of a chunk, never a partial write. A collection records the
// embedding model and dimension it was created with.
type VectorIndex interface {
	// EnsureCollection creates the collection if it does not exist.
	// Returns domain.ErrEmbedderMismatch when it exists with another model or dimension.
	EnsureCollection(ctx context.Context, name, model string, dimension int) error

	// DropCollection deletes a collection and everything in it.
	// Dropping an unknown collection is not an error.
	DropCollection(ctx context.Context, name string) error

	// Collections lists collection names in ascending order.
	Collections(ctx context.Context) ([]string, error)

	// Upsert inserts or replaces chunks as one atomic batch.
	Upsert(ctx context.Context, collection string, records []VectorRecord) error

	// ReplaceDocument atomically swaps all chunks of a document, deleting
	// chunk IDs no longer present, and returns the new document version.
	ReplaceDocument(ctx context.Context, collection string, doc domain.DocumentRecord, records []VectorRecord) (int, error)

	// DocumentHash returns the stored content hash and chunk count of a document.
	// Returns domain.ErrNotFound when the document is absent.
	DocumentHash(ctx context.Context, collection, documentID string) (string, int, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, collection, documentID string) error

	// Delete removes a single chunk.
	Delete(ctx context.Context, collection, chunkID string) error

	// Search returns up to topK chunks by descending cosine similarity, ties
	// broken by chunk position, document ID and chunk ID. Unknown or empty
	// collections yield an empty result. A query vector of the wrong length
	// yields domain.ErrDimensionMismatch.
	Search(ctx context.Context, collection string, query []float32, topK int) ([]domain.RetrievedEvidence, error)

	// Stats summarises a collection. Unknown collections yield zero stats.
	Stats(ctx context.Context, collection string) (domain.CollectionStats, error)

	// Close releases resources.
	Close() error
}
