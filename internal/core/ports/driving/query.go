package driving

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// QueryService answers questions with cited, confidence-scored results.
//
// Backend failures never surface as Go errors: they produce a result with
// State ERRORED and Error set. Errors are returned only for invalid
// arguments and caller cancellation.
type QueryService interface {
	// Query answers one question.
	Query(ctx context.Context, question string, opts domain.QueryOptions) (*domain.QueryResult, error)

	// QueryWithContext answers a question in the light of prior conversation.
	QueryWithContext(ctx context.Context, question, conversation string, opts domain.QueryOptions) (*domain.QueryResult, error)

	// MultiQuery answers questions concurrently. The result has the same
	// length and order as questions; a failing question yields its own
	// error-flavoured result. topK <= 0 selects the batch default.
	MultiQuery(ctx context.Context, questions []string, opts domain.QueryOptions) ([]*domain.QueryResult, error)
}

// GroundingService judges whether statements are supported by the corpus.
type GroundingService interface {
	// CheckGrounding classifies a statement as supported, partially supported
	// or not supported. topK <= 0 selects the default.
	CheckGrounding(ctx context.Context, statement, collection string, topK int) (*domain.GroundingVerdict, error)
}

// CollectionService reports on collections for readiness checks.
type CollectionService interface {
	// Info returns statistics for one collection (default when empty).
	Info(ctx context.Context, collection string) (domain.CollectionStats, error)

	// List returns statistics for every collection.
	List(ctx context.Context) ([]domain.CollectionStats, error)
}

// RoutingService maps a complaint to the department that owns it.
type RoutingService interface {
	// Route reads the department of the top citation for the complaint.
	Route(ctx context.Context, complaint, collection string) (*domain.Route, error)
}
