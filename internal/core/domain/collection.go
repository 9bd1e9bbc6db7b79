package domain

import (
	"fmt"
	"regexp"
)

// DefaultCollection is the primary collection used when none is named.
const DefaultCollection = "bank_policies"

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateCollectionName checks a collection name is usable as an identifier.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name %q must match %s",
			ErrInvalidArgument, name, collectionNamePattern.String())
	}
	return nil
}

// CollectionStats summarises a collection for health and readiness reporting.
type CollectionStats struct {
	// Name is the collection name.
	Name string `json:"name"`

	// DocumentCount is the number of distinct documents.
	DocumentCount int `json:"document_count"`

	// ChunkCount is the number of indexed chunks.
	ChunkCount int `json:"chunk_count"`

	// Dimension is the vector size fixed at collection creation (0 if empty).
	Dimension int `json:"dimension"`

	// Model is the embedding model the collection was built with.
	Model string `json:"model,omitempty"`
}

// IsEmpty reports whether the collection holds no chunks.
func (s CollectionStats) IsEmpty() bool {
	return s.ChunkCount == 0
}
