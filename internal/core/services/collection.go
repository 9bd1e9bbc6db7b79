package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

// Ensure CollectionService implements the interface.
var _ driving.CollectionService = (*CollectionService)(nil)

// CollectionService reports collection statistics.
type CollectionService struct {
	index             driven.VectorIndex
	defaultCollection string
}

// NewCollectionService creates a collection service.
func NewCollectionService(index driven.VectorIndex, defaultCollection string) *CollectionService {
	return &CollectionService{index: index, defaultCollection: defaultCollection}
}

// Info returns statistics for one collection, the default when name is empty.
func (s *CollectionService) Info(ctx context.Context, name string) (domain.CollectionStats, error) {
	if name == "" {
		name = s.defaultCollection
	}
	if err := domain.ValidateCollectionName(name); err != nil {
		return domain.CollectionStats{}, err
	}
	stats, err := s.index.Stats(ctx, name)
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("stats %s: %w", name, err)
	}
	stats.Name = name
	return stats, nil
}

// List returns statistics for every collection, by name.
func (s *CollectionService) List(ctx context.Context) ([]domain.CollectionStats, error) {
	names, err := s.index.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	out := make([]domain.CollectionStats, 0, len(names))
	for _, name := range names {
		stats, err := s.index.Stats(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", name, err)
		}
		stats.Name = name
		out = append(out, stats)
	}
	return out, nil
}
