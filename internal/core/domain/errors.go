package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidArgument is returned synchronously for out-of-range top_k,
	// empty questions or statements and bad collection names, before any
	// collaborator is called.
	ErrInvalidArgument = ErrInvalidInput

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates the embedder or vector index could not
	// be reached within the retry budget.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMalformedDocument indicates a document could not be parsed or chunked.
	// Ingestion skips such documents and continues.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEmptyIndex indicates a collection holds no chunks.
	// Queries never return it; it marks the zero-confidence refusal path.
	ErrEmptyIndex = errors.New("empty index")

	// ErrEmbedderMismatch indicates a collection was built with a different
	// embedding model or dimension. The collection must be re-indexed.
	ErrEmbedderMismatch = errors.New("embedder mismatch")

	// ErrDimensionMismatch indicates a vector has the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown provider or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")
)
