package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Normaliser converts one family of raw policy files (plain text,
// Markdown, HTML) into a Document whose Content is ready for chunking.
type Normaliser interface {
	// SupportedMIMETypes lists the MIME types the normaliser accepts.
	SupportedMIMETypes() []string

	// Priority breaks ties when two normalisers accept the same MIME type.
	// The highest wins.
	Priority() int

	// Normalise decodes raw. Front matter declarations (title, department,
	// document_type) are lifted onto the Document and stripped from Content.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult wraps a normalised document. Chunks are produced later
// by the PostProcessorPipeline.
type NormaliseResult struct {
	Document domain.Document
}

// NormaliserRegistry routes a raw document to the normaliser for its MIME
// type. Unknown types fail with domain.ErrUnsupportedType.
type NormaliserRegistry interface {
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
	Register(normaliser Normaliser)
	SupportedMIMETypes() []string
}
