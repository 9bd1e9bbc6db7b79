package cli

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

type mockQueryService struct {
	lastQuestion string
	lastContext  string
	lastOpts     domain.QueryOptions
	questions    []string
	err          error
}

func (m *mockQueryService) Query(_ context.Context, question string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	m.lastQuestion = question
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.QueryResult{
		Question:   question,
		Collection: "bank_policies",
		Answer:     "Card refunds are processed within five business days. [1]",
		Sources: []domain.Citation{{
			Rank:       1,
			DocumentID: "card_policy",
			ChunkID:    "c-1",
			Title:      "Card Policy",
			Section:    "Refunds",
			Department: "CARD",
			Similarity: 0.81,
			Snippet:    "Card refunds are processed...",
		}},
		Confidence:      0.85,
		Grounded:        true,
		Verdict:         domain.VerdictSupported,
		RetrievedChunks: 1,
		State:           domain.QueryReturned,
	}, nil
}

func (m *mockQueryService) QueryWithContext(
	ctx context.Context,
	question, conversation string,
	opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	m.lastContext = conversation
	return m.Query(ctx, question, opts)
}

func (m *mockQueryService) MultiQuery(ctx context.Context, questions []string, opts domain.QueryOptions) ([]*domain.QueryResult, error) {
	m.questions = questions
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	results := make([]*domain.QueryResult, len(questions))
	for i, q := range questions {
		results[i], _ = m.Query(ctx, q, opts)
	}
	return results, nil
}

type mockGroundingService struct {
	lastTopK int
}

func (m *mockGroundingService) CheckGrounding(_ context.Context, statement, collection string, topK int) (*domain.GroundingVerdict, error) {
	m.lastTopK = topK
	return &domain.GroundingVerdict{
		Statement:  statement,
		Collection: collection,
		Verdict:    domain.VerdictPartiallySupported,
		Confidence: 0.52,
		SupportingEvidence: []domain.Citation{
			{Rank: 1, DocumentID: "card_policy", ChunkID: "c-1", Similarity: 0.52},
		},
	}, nil
}

type mockCollectionService struct{}

func (m *mockCollectionService) Info(_ context.Context, collection string) (domain.CollectionStats, error) {
	if collection == "" {
		collection = "bank_policies"
	}
	return domain.CollectionStats{Name: collection, DocumentCount: 3, ChunkCount: 42, Dimension: 384, Model: "fnv-hash-384"}, nil
}

func (m *mockCollectionService) List(ctx context.Context) ([]domain.CollectionStats, error) {
	main, _ := m.Info(ctx, "bank_policies")
	return []domain.CollectionStats{main, {Name: "drafts"}}, nil
}

type mockRoutingService struct {
	grounded bool
}

func (m *mockRoutingService) Route(_ context.Context, complaint, _ string) (*domain.Route, error) {
	if !m.grounded {
		return &domain.Route{Complaint: complaint, Confidence: 0.2}, nil
	}
	return &domain.Route{
		Complaint:  complaint,
		Department: "CARD",
		Confidence: 0.8,
		Grounded:   true,
		Citation:   &domain.Citation{Rank: 1, DocumentID: "card_policy", Section: "Refunds"},
	}, nil
}

type mockIngestService struct {
	lastCollection string
	lastOpts       domain.IngestOptions
	sources        int
}

func (m *mockIngestService) Ingest(_ context.Context, collection string, docs []domain.Document, opts domain.IngestOptions) (*domain.IngestReport, error) {
	m.lastCollection = collection
	m.lastOpts = opts
	return &domain.IngestReport{Collection: collection, DocumentsIngested: len(docs)}, nil
}

func (m *mockIngestService) IngestDocument(ctx context.Context, collection string, doc domain.Document) (*domain.IngestReport, error) {
	return m.Ingest(ctx, collection, []domain.Document{doc}, domain.IngestOptions{})
}

func (m *mockIngestService) IngestSource(_ context.Context, collection string, _ driven.Connector, opts domain.IngestOptions) (*domain.IngestReport, error) {
	m.sources++
	m.lastCollection = collection
	m.lastOpts = opts
	return &domain.IngestReport{
		Collection:        collection,
		DocumentsIngested: 2,
		ChunksCreated:     9,
		Skipped:           []domain.SkippedDocument{{URI: "file:///corpus/bad.md", Reason: "content is not valid UTF-8"}},
	}, nil
}

func (m *mockIngestService) RemoveDocument(_ context.Context, _, _ string) error {
	return nil
}

type mockWatchService struct {
	calls int
}

func (m *mockWatchService) Watch(_ context.Context, _ string, _ driven.Connector) error {
	m.calls++
	return context.Canceled
}

type mockConnector struct {
	closed bool
}

func (m *mockConnector) Type() string                     { return "mock" }
func (m *mockConnector) Validate(_ context.Context) error { return nil }
func (m *mockConnector) FullSync(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	close(docs)
	close(errs)
	return docs, errs
}
func (m *mockConnector) Watch(_ context.Context) (<-chan domain.RawDocumentChange, error) {
	return nil, nil
}
func (m *mockConnector) Close() error {
	m.closed = true
	return nil
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	query      *mockQueryService
	grounding  *mockGroundingService
	routing    *mockRoutingService
	ingest     *mockIngestService
	watch      *mockWatchService
	connector  *mockConnector
	connectArg []string
}

// setupTestServices installs mocks for every service and returns a cleanup
// func that restores the globals and resets command flags.
func setupTestServices() func() {
	_, cleanup := setupTestServicesWith()
	return cleanup
}

func setupTestServicesWith() (*testServices, func()) {
	ts := &testServices{
		query:     &mockQueryService{},
		grounding: &mockGroundingService{},
		routing:   &mockRoutingService{grounded: true},
		ingest:    &mockIngestService{},
		watch:     &mockWatchService{},
		connector: &mockConnector{},
	}

	origConnector := newConnector
	queryService = ts.query
	groundingService = ts.grounding
	collectionService = &mockCollectionService{}
	routingService = ts.routing
	ingestService = ts.ingest
	watchService = ts.watch
	newConnector = func(paths []string) driven.Connector {
		ts.connectArg = paths
		return ts.connector
	}

	return ts, func() {
		queryService = nil
		groundingService = nil
		collectionService = nil
		routingService = nil
		ingestService = nil
		watchService = nil
		newConnector = origConnector
		resetFlags()
	}
}

func resetFlags() {
	verbose, logLevel, configDir, dataDir, collection, ephemeral = false, "", "", "", "", false
	queryTopK, queryNoMetadata, queryJSON, queryContext = 0, false, false, ""
	batchTopK, batchJSON = 0, false
	checkTopK, checkJSON = 0, false
	routeJSON = false
	infoAll, infoJSON = false, false
	ingestForce, ingestReindex, ingestWatch, ingestJSON = false, false, false, false
	versionShort = false
}
