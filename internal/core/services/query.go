package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/observability"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// Answers returned when no cited answer can be given.
const (
	NoRelevantAnswer   = "No relevant policy information found in the knowledge base."
	UnavailableAnswer  = "Insufficient information: the knowledge base could not be reached. Please try again later."
	InvalidAnswer      = "Insufficient information: the question could not be processed."
	msgEmptyCollection = "No relevant information found in the knowledge base."
	msgBelowFloor      = "The retrieved information is not relevant enough."
)

// retrieval is the embed-then-search path shared by queries and grounding checks.
type retrieval struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	cfg      domain.Config
	retry    *retrier
}

func newRetrieval(embedder driven.EmbeddingService, index driven.VectorIndex, cfg domain.Config, metrics *observability.Metrics) retrieval {
	return retrieval{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		retry:    newRetrier(cfg.Backend, metrics),
	}
}

func (r retrieval) search(ctx context.Context, collection string, vec []float32, topK int) ([]domain.RetrievedEvidence, error) {
	var hits []domain.RetrievedEvidence
	err := r.retry.do(ctx, "search", r.cfg.Backend.SearchTimeout, func(ctx context.Context) error {
		var err error
		hits, err = r.index.Search(ctx, collection, vec, topK)
		return err
	})
	return hits, err
}

// resolveCollection applies the default collection and validates the name.
func (r retrieval) resolveCollection(name string) (string, error) {
	if name == "" {
		name = r.cfg.Retrieval.DefaultCollection
	}
	if err := domain.ValidateCollectionName(name); err != nil {
		return "", err
	}
	return name, nil
}

// resolveTopK applies def when topK is zero and checks the range.
func (r retrieval) resolveTopK(topK, def int) (int, error) {
	if topK == 0 {
		topK = def
	}
	if topK < 1 || topK > r.cfg.Retrieval.MaxTopK {
		return 0, fmt.Errorf("%w: top_k must be in [1, %d], got %d",
			domain.ErrInvalidArgument, r.cfg.Retrieval.MaxTopK, topK)
	}
	return topK, nil
}

func (r retrieval) validateText(kind, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: %s must not be empty", domain.ErrInvalidArgument, kind)
	}
	if n := len([]rune(text)); n > r.cfg.Retrieval.MaxQuestionChars {
		return fmt.Errorf("%w: %s is %d characters, limit is %d",
			domain.ErrInvalidArgument, kind, n, r.cfg.Retrieval.MaxQuestionChars)
	}
	return nil
}

// QueryService answers questions from a collection with cited,
// confidence-scored extractive answers.
type QueryService struct {
	retrieval
	metrics *observability.Metrics
}

// NewQueryService creates a query service. embedder should already carry
// retries and timeouts; index searches are retried here. metrics may be nil.
func NewQueryService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	cfg domain.Config,
	metrics *observability.Metrics,
) *QueryService {
	return &QueryService{
		retrieval: newRetrieval(embedder, index, cfg, metrics),
		metrics:   metrics,
	}
}

// Query answers one question.
func (s *QueryService) Query(ctx context.Context, question string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	return s.answer(ctx, question, question, opts, s.cfg.Retrieval.DefaultTopK)
}

// QueryWithContext answers question with prior conversation prepended to
// the text that is embedded.
func (s *QueryService) QueryWithContext(
	ctx context.Context,
	question, conversation string,
	opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	text := question
	if c := strings.TrimSpace(conversation); c != "" {
		text = c + "\n\nCurrent question: " + question
	}
	return s.answer(ctx, question, text, opts, s.cfg.Retrieval.DefaultTopK)
}

// MultiQuery answers questions concurrently, at most MaxParallel at a time.
func (s *QueryService) MultiQuery(
	ctx context.Context,
	questions []string,
	opts domain.QueryOptions,
) ([]*domain.QueryResult, error) {
	topK, err := s.resolveTopK(opts.TopK, s.cfg.Retrieval.MultiQueryTopK)
	if err != nil {
		return nil, err
	}
	collection, err := s.resolveCollection(opts.Collection)
	if err != nil {
		return nil, err
	}
	opts.TopK = topK
	opts.Collection = collection

	results := make([]*domain.QueryResult, len(questions))
	var g errgroup.Group
	g.SetLimit(s.cfg.Retrieval.MaxParallel)

	for i, q := range questions {
		g.Go(func() error {
			res, err := s.answer(ctx, q, q, opts, topK)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res = erroredResult(q, collection, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Processed %d queries in batch", len(questions))
	return results, nil
}

// answer runs the lifecycle for one question. text is what gets embedded.
//
//nolint:gocyclo // Lifecycle with sequential steps
func (s *QueryService) answer(
	ctx context.Context,
	question, text string,
	opts domain.QueryOptions,
	defTopK int,
) (*domain.QueryResult, error) {
	start := time.Now()

	collection, err := s.resolveCollection(opts.Collection)
	if err == nil {
		err = s.validateText("question", question)
	}
	topK := 0
	if err == nil {
		topK, err = s.resolveTopK(opts.TopK, defTopK)
	}
	if err != nil {
		s.metrics.ObserveQuery(observability.OutcomeInvalid, 0, 0)
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "verity.query",
		attribute.String("verity.collection", collection),
		attribute.Int("verity.top_k", topK),
	)
	defer span.End()

	lc := NewLifecycle(span)
	result := &domain.QueryResult{
		Question:   question,
		Collection: collection,
		Sources:    []domain.Citation{},
		Verdict:    domain.VerdictNotSupported,
		State:      domain.QueryReceived,
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.RecordError(span, err)
		return s.fail(lc, result, fmt.Errorf("embed question: %w", err), start)
	}
	if err := lc.Advance(domain.QueryEmbedded); err != nil {
		return nil, err
	}

	hits, err := s.search(ctx, collection, vec, topK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.RecordError(span, err)
		return s.fail(lc, result, fmt.Errorf("search %s: %w", collection, err), start)
	}
	if err := lc.Advance(domain.QueryRetrieved); err != nil {
		return nil, err
	}

	used := relevant(hits, s.cfg.Retrieval.RelevanceFloor, topK)
	if len(used) == 0 {
		result.Answer = NoRelevantAnswer
		result.Message = msgBelowFloor
		if len(hits) == 0 {
			result.Message = msgEmptyCollection
		}
		logger.Warn("No relevant chunks for query in %s", collection)
		if err := lc.Advance(domain.QueryReturned); err != nil {
			return nil, err
		}
		result.State = lc.State()
		s.metrics.ObserveQuery(observability.OutcomeRefused, 0, time.Since(start))
		return result, nil
	}

	result.Answer = Synthesize(question, used, s.cfg.Synthesis)
	result.Sources = citations(used, opts.WantsMetadata(), s.cfg.Synthesis.MaxSnippetChars)
	result.RetrievedChunks = len(used)
	if err := lc.Advance(domain.QuerySynthesized); err != nil {
		return nil, err
	}

	a := Assess(used, s.cfg.Grounding)
	result.Confidence = a.Confidence
	result.Grounded = a.Grounded
	result.Verdict = a.Verdict
	if err := lc.Advance(domain.QueryScored); err != nil {
		return nil, err
	}

	if err := lc.Advance(domain.QueryReturned); err != nil {
		return nil, err
	}
	result.State = lc.State()

	span.SetAttributes(
		attribute.Float64("verity.confidence", result.Confidence),
		attribute.Bool("verity.grounded", result.Grounded),
	)
	logger.Info("Query answered with confidence %.3f from %d chunks", result.Confidence, len(used))
	s.metrics.ObserveQuery(observability.OutcomeAnswered, result.Confidence, time.Since(start))
	return result, nil
}

// fail resolves a backend failure into an ERRORED result.
func (s *QueryService) fail(
	lc *Lifecycle,
	result *domain.QueryResult,
	cause error,
	start time.Time,
) (*domain.QueryResult, error) {
	if err := lc.Advance(domain.QueryErrored); err != nil {
		return nil, errors.Join(err, cause)
	}
	logger.Warn("Query failed: %v", cause)
	result.State = lc.State()
	result.Answer = UnavailableAnswer
	result.Error = cause.Error()
	s.metrics.ObserveQuery(observability.OutcomeErrored, 0, time.Since(start))
	return result, nil
}

// erroredResult is the per-question result for a failed batch entry. It
// still carries a refusal answer so no entry reaches the caller blank.
func erroredResult(question, collection string, err error) *domain.QueryResult {
	answer := UnavailableAnswer
	if errors.Is(err, domain.ErrInvalidArgument) {
		answer = InvalidAnswer
	}
	return &domain.QueryResult{
		Question:   question,
		Answer:     answer,
		Collection: collection,
		Sources:    []domain.Citation{},
		Verdict:    domain.VerdictNotSupported,
		State:      domain.QueryErrored,
		Error:      err.Error(),
	}
}
