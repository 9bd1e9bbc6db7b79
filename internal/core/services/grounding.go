package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/observability"
)

// Ensure GroundingService implements the interface.
var _ driving.GroundingService = (*GroundingService)(nil)

// GroundingService checks candidate statements against a collection.
type GroundingService struct {
	retrieval
	metrics *observability.Metrics
}

// NewGroundingService creates a grounding service. metrics may be nil.
func NewGroundingService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	cfg domain.Config,
	metrics *observability.Metrics,
) *GroundingService {
	return &GroundingService{
		retrieval: newRetrieval(embedder, index, cfg, metrics),
		metrics:   metrics,
	}
}

// CheckGrounding classifies statement by the evidence retrieved for it.
func (s *GroundingService) CheckGrounding(
	ctx context.Context,
	statement, collection string,
	topK int,
) (*domain.GroundingVerdict, error) {
	collection, err := s.resolveCollection(collection)
	if err != nil {
		return nil, err
	}
	if err := s.validateText("statement", statement); err != nil {
		return nil, err
	}
	topK, err = s.resolveTopK(topK, s.cfg.Grounding.DefaultTopK)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "verity.check_grounding",
		attribute.String("verity.collection", collection),
		attribute.Int("verity.top_k", topK),
	)
	defer span.End()

	verdict := &domain.GroundingVerdict{
		Statement:          statement,
		Collection:         collection,
		Verdict:            domain.VerdictNotSupported,
		SupportingEvidence: []domain.Citation{},
	}

	vec, err := s.embedder.Embed(ctx, statement)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return s.fail(verdict, fmt.Errorf("embed statement: %w", err)), nil
	}

	hits, err := s.search(ctx, collection, vec, topK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return s.fail(verdict, fmt.Errorf("search %s: %w", collection, err)), nil
	}

	used := relevant(hits, s.cfg.Retrieval.RelevanceFloor, topK)
	a := Assess(used, s.cfg.Grounding)
	verdict.Verdict = a.Verdict
	verdict.Confidence = a.Confidence
	verdict.SupportingEvidence = citations(used, true, s.cfg.Synthesis.MaxSnippetChars)

	span.SetAttributes(
		attribute.String("verity.verdict", a.Verdict.String()),
		attribute.Float64("verity.confidence", a.Confidence),
	)
	logger.Debug("Grounding check: %s (%.3f) from %d chunks", a.Verdict, a.Confidence, len(used))
	s.metrics.ObserveVerdict(a.Verdict.String())
	return verdict, nil
}

func (s *GroundingService) fail(v *domain.GroundingVerdict, cause error) *domain.GroundingVerdict {
	logger.Warn("Grounding check failed: %v", cause)
	v.Error = cause.Error()
	s.metrics.ObserveVerdict(v.Verdict.String())
	return v
}
