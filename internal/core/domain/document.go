package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// DocumentType classifies a source document.
type DocumentType string

// Known document types.
const (
	// DocumentTypePolicy is a bank policy document.
	DocumentTypePolicy DocumentType = "policy"

	// DocumentTypeFAQ is a customer-facing FAQ document.
	DocumentTypeFAQ DocumentType = "faq"

	// DocumentTypeGeneral is anything else.
	DocumentTypeGeneral DocumentType = "general"
)

// IsValid returns true if the document type is recognised.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePolicy, DocumentTypeFAQ, DocumentTypeGeneral:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

// Chunk metadata keys populated by the chunking and enrichment stages.
const (
	MetaTitle        = "title"
	MetaDocumentType = "document_type"
	MetaKeyTerms     = "key_terms"
	MetaCharCount    = "char_count"

	// MetaDocumentID carries a loader-assigned document ID on raw documents.
	MetaDocumentID = "document_id"

	// MetaScope numbers the major heading a chunk falls under.
	// Department declarations apply until the scope changes.
	MetaScope = "scope"
)

// Document represents a source text submitted for ingestion.
// It is immutable once ingested: identical content re-ingests as a no-op,
// changed content creates a new version of the same document ID.
type Document struct {
	// ID is the stable identifier for the document (e.g. the file stem).
	ID string

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text body after normalisation.
	Content string

	// DocumentType classifies the document.
	DocumentType DocumentType

	// Department is the document-wide department code, if declared.
	// Section-level declarations take precedence on individual chunks.
	Department string

	// ContentHash identifies the normalised content.
	ContentHash string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any
}

// Chunk represents a searchable unit within a document.
// Documents are split into chunks for granular retrieval.
type Chunk struct {
	// ID is the deterministic identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Section is the label of the nearest preceding heading.
	Section string

	// Department is the routing department code in effect for this chunk.
	Department string

	// Position is the ordinal position within the document.
	Position int

	// ContentHash identifies the chunk text.
	ContentHash string

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// MetadataString returns a string metadata value or "" when absent.
func (c *Chunk) MetadataString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[key].(string)
	return s
}

// HashContent returns the hex-encoded SHA-256 of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
