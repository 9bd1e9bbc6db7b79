package mcp

import (
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions.
	Query driving.QueryService

	// Grounding checks statements against the corpus.
	Grounding driving.GroundingService

	// Collection reports collection statistics.
	Collection driving.CollectionService

	// Routing maps complaints to departments.
	Routing driving.RoutingService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// The remaining tools are registered only when their port is set.
	return nil
}
