package domain

// RetrievedEvidence is a chunk returned by a similarity search.
// Similarity is the cosine similarity in [-1, 1].
type RetrievedEvidence struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Title is the parent document title.
	Title string

	// DocumentType is the parent document type.
	DocumentType DocumentType

	// Similarity is the cosine similarity to the query vector.
	Similarity float64
}

// Citation is a traceable reference to one chunk backing an answer.
type Citation struct {
	// Rank is the 1-based position in retrieval order.
	Rank int `json:"rank"`

	// DocumentID is the source document.
	DocumentID string `json:"source_document"`

	// ChunkID is the exact chunk cited.
	ChunkID string `json:"chunk_id"`

	// Title is the source document title.
	Title string `json:"title,omitempty"`

	// Section is the heading the chunk belongs to.
	Section string `json:"section,omitempty"`

	// Department is the structured routing department of the chunk.
	Department string `json:"department,omitempty"`

	// DocumentType is the source document type.
	DocumentType DocumentType `json:"document_type,omitempty"`

	// Similarity is the cosine similarity to the query.
	Similarity float64 `json:"similarity_score"`

	// Snippet is a short excerpt of the chunk.
	Snippet string `json:"snippet,omitempty"`
}
