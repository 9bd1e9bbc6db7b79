package services

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

// Ensure RoutingService implements the interface.
var _ driving.RoutingService = (*RoutingService)(nil)

// routeTopK is the number of chunks consulted when routing a complaint.
const routeTopK = 3

// RoutingService dispatches complaints by the department recorded on the
// best matching chunk.
type RoutingService struct {
	query driving.QueryService
}

// NewRoutingService creates a routing service on top of a query service.
func NewRoutingService(query driving.QueryService) *RoutingService {
	return &RoutingService{query: query}
}

// Route answers the complaint and reads the department of the top citation.
// Ungrounded answers route nowhere.
func (s *RoutingService) Route(ctx context.Context, complaint, collection string) (*domain.Route, error) {
	res, err := s.query.Query(ctx, complaint, domain.QueryOptions{
		Collection: collection,
		TopK:       routeTopK,
	})
	if err != nil {
		return nil, err
	}

	route := &domain.Route{
		Complaint:  complaint,
		Confidence: res.Confidence,
		Grounded:   res.Grounded,
	}
	if !res.Grounded || len(res.Sources) == 0 {
		return route, nil
	}

	top := res.Sources[0]
	route.Department = top.Department
	route.Citation = &top
	return route, nil
}
