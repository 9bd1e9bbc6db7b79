package mcp

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result      *domain.QueryResult
	results     []*domain.QueryResult
	err         error
	lastOpts    domain.QueryOptions
	lastContext string
}

func (m *mockQueryService) Query(_ context.Context, question string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	m.lastOpts = opts
	if m.result != nil {
		m.result.Question = question
	}
	return m.result, m.err
}

func (m *mockQueryService) QueryWithContext(
	ctx context.Context,
	question, conversation string,
	opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	m.lastContext = conversation
	return m.Query(ctx, question, opts)
}

func (m *mockQueryService) MultiQuery(_ context.Context, _ []string, opts domain.QueryOptions) ([]*domain.QueryResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockGroundingService is a mock implementation of driving.GroundingService.
type mockGroundingService struct {
	verdict *domain.GroundingVerdict
	err     error
}

func (m *mockGroundingService) CheckGrounding(_ context.Context, _, _ string, _ int) (*domain.GroundingVerdict, error) {
	return m.verdict, m.err
}

// mockCollectionService is a mock implementation of driving.CollectionService.
type mockCollectionService struct {
	stats    []domain.CollectionStats
	err      error
	lastName string
}

func (m *mockCollectionService) Info(_ context.Context, collection string) (domain.CollectionStats, error) {
	m.lastName = collection
	if m.err != nil {
		return domain.CollectionStats{}, m.err
	}
	for _, s := range m.stats {
		if s.Name == collection {
			return s, nil
		}
	}
	return domain.CollectionStats{Name: collection}, nil
}

func (m *mockCollectionService) List(_ context.Context) ([]domain.CollectionStats, error) {
	return m.stats, m.err
}

// mockRoutingService is a mock implementation of driving.RoutingService.
type mockRoutingService struct {
	route *domain.Route
	err   error
}

func (m *mockRoutingService) Route(_ context.Context, _, _ string) (*domain.Route, error) {
	return m.route, m.err
}
