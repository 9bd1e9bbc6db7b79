package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/verity/internal/adapters/driven/storage/vectors"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

type storedChunk struct {
	chunk     domain.Chunk
	embedding []float32
	magnitude float32
}

type storedDocument struct {
	record  domain.DocumentRecord
	version int
	chunks  map[string]bool
}

type collection struct {
	model     string
	dimension int
	documents map[string]*storedDocument
	chunks    map[string]storedChunk
}

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// It mirrors the SQLite adapter for tests and ephemeral runs.
type VectorIndex struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewVectorIndex creates an empty in-memory index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		collections: make(map[string]*collection),
	}
}

// EnsureCollection creates the collection if it does not exist.
func (v *VectorIndex) EnsureCollection(_ context.Context, name, model string, dimension int) error {
	if err := domain.ValidateCollectionName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if c, ok := v.collections[name]; ok {
		if c.model != model || c.dimension != dimension {
			return fmt.Errorf("%w: collection %q was built with %s (%d dimensions), embedder is %s (%d dimensions)",
				domain.ErrEmbedderMismatch, name, c.model, c.dimension, model, dimension)
		}
		return nil
	}

	v.collections[name] = &collection{
		model:     model,
		dimension: dimension,
		documents: make(map[string]*storedDocument),
		chunks:    make(map[string]storedChunk),
	}
	return nil
}

// DropCollection deletes a collection and everything in it.
func (v *VectorIndex) DropCollection(_ context.Context, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.collections, name)
	return nil
}

// Collections lists collection names in ascending order.
func (v *VectorIndex) Collections(_ context.Context) ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Sorted(maps.Keys(v.collections)), nil
}

// Upsert inserts or replaces chunks as one batch.
func (v *VectorIndex) Upsert(_ context.Context, name string, records []driven.VectorRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	c, err := v.get(name)
	if err != nil {
		return err
	}
	if err := checkDimensions(records, c.dimension); err != nil {
		return err
	}

	for _, r := range records {
		doc, ok := c.documents[r.Chunk.DocumentID]
		if !ok {
			doc = &storedDocument{
				record: domain.DocumentRecord{
					ID:           r.Chunk.DocumentID,
					Title:        r.Chunk.MetadataString(domain.MetaTitle),
					DocumentType: domain.DocumentType(r.Chunk.MetadataString(domain.MetaDocumentType)),
					Department:   r.Chunk.Department,
				},
				version: 1,
				chunks:  make(map[string]bool),
			}
			c.documents[r.Chunk.DocumentID] = doc
		}
		c.put(r)
		doc.chunks[r.Chunk.ID] = true
	}
	return nil
}

// ReplaceDocument swaps every chunk of a document and returns the new version.
func (v *VectorIndex) ReplaceDocument(_ context.Context, name string, rec domain.DocumentRecord, records []driven.VectorRecord) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	c, err := v.get(name)
	if err != nil {
		return 0, err
	}
	if err := checkDimensions(records, c.dimension); err != nil {
		return 0, err
	}
	for _, r := range records {
		if r.Chunk.DocumentID != rec.ID {
			return 0, fmt.Errorf("%w: chunk %s belongs to %q, not %q",
				domain.ErrInvalidInput, r.Chunk.ID, r.Chunk.DocumentID, rec.ID)
		}
	}

	version := 1
	if old, ok := c.documents[rec.ID]; ok {
		version = old.version + 1
		c.removeDocument(rec.ID)
	}

	doc := &storedDocument{record: rec, version: version, chunks: make(map[string]bool, len(records))}
	for _, r := range records {
		c.put(r)
		doc.chunks[r.Chunk.ID] = true
	}
	c.documents[rec.ID] = doc
	return version, nil
}

// DocumentHash returns the stored content hash and chunk count of a document.
func (v *VectorIndex) DocumentHash(_ context.Context, name, documentID string) (string, int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.collections[name]
	if !ok {
		return "", 0, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	doc, ok := c.documents[documentID]
	if !ok {
		return "", 0, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return doc.record.ContentHash, len(doc.chunks), nil
}

// DeleteDocument removes a document and its chunks.
func (v *VectorIndex) DeleteDocument(_ context.Context, name, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if c, ok := v.collections[name]; ok {
		c.removeDocument(documentID)
	}
	return nil
}

// Delete removes a single chunk.
func (v *VectorIndex) Delete(_ context.Context, name, chunkID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	c, ok := v.collections[name]
	if !ok {
		return nil
	}
	if sc, ok := c.chunks[chunkID]; ok {
		if doc, ok := c.documents[sc.chunk.DocumentID]; ok {
			delete(doc.chunks, chunkID)
		}
		delete(c.chunks, chunkID)
	}
	return nil
}

// Search ranks every chunk in the collection by cosine similarity.
func (v *VectorIndex) Search(_ context.Context, name string, query []float32, topK int) ([]domain.RetrievedEvidence, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.collections[name]
	if !ok {
		return []domain.RetrievedEvidence{}, nil
	}
	if len(query) != c.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q has %d",
			domain.ErrDimensionMismatch, len(query), name, c.dimension)
	}

	queryMag := vectors.Magnitude(query)
	results := make([]domain.RetrievedEvidence, 0, len(c.chunks))
	for _, sc := range c.chunks {
		ev := domain.RetrievedEvidence{
			Chunk:      sc.chunk,
			Similarity: vectors.Cosine(query, sc.embedding, queryMag, sc.magnitude),
		}
		if doc, ok := c.documents[sc.chunk.DocumentID]; ok {
			ev.Title = doc.record.Title
			ev.DocumentType = doc.record.DocumentType
		}
		if !ev.DocumentType.IsValid() {
			ev.DocumentType = domain.DocumentTypeGeneral
		}
		results = append(results, ev)
	}
	return vectors.Top(results, topK), nil
}

// Stats summarises a collection. Unknown collections yield zero stats.
func (v *VectorIndex) Stats(_ context.Context, name string) (domain.CollectionStats, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	stats := domain.CollectionStats{Name: name}
	if c, ok := v.collections[name]; ok {
		stats.Model = c.model
		stats.Dimension = c.dimension
		stats.DocumentCount = len(c.documents)
		stats.ChunkCount = len(c.chunks)
	}
	return stats, nil
}

// Close is a no-op for the memory index.
func (v *VectorIndex) Close() error {
	return nil
}

func (v *VectorIndex) get(name string) (*collection, error) {
	c, ok := v.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return c, nil
}

// put stores a copy of the record so callers cannot mutate indexed state.
func (c *collection) put(r driven.VectorRecord) {
	chunk := r.Chunk
	chunk.Embedding = nil
	chunk.Metadata = maps.Clone(r.Chunk.Metadata)
	embedding := slices.Clone(r.Embedding)

	// A chunk ID moving between documents leaves its old owner.
	if prev, ok := c.chunks[chunk.ID]; ok && prev.chunk.DocumentID != chunk.DocumentID {
		if doc, ok := c.documents[prev.chunk.DocumentID]; ok {
			delete(doc.chunks, chunk.ID)
		}
	}

	c.chunks[chunk.ID] = storedChunk{
		chunk:     chunk,
		embedding: embedding,
		magnitude: vectors.Magnitude(embedding),
	}
}

func (c *collection) removeDocument(id string) {
	doc, ok := c.documents[id]
	if !ok {
		return
	}
	for chunkID := range doc.chunks {
		delete(c.chunks, chunkID)
	}
	delete(c.documents, id)
}

func checkDimensions(records []driven.VectorRecord, dim int) error {
	for _, r := range records {
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Embedding), dim)
		}
	}
	return nil
}
