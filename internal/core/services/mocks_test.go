package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/verity/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService for testing.
// Vectors count occurrences of each keyword in the lowercased text.
type mockEmbedder struct {
	keywords []string
	model    string

	mu    sync.Mutex
	texts []string

	calls      atomic.Int32
	batchCalls atomic.Int32

	// errs is consumed one per call; the last entry repeats.
	errs []error
	// hook runs before every call.
	hook func(ctx context.Context, text string) error
	// override replaces the computed vector.
	override []float32
}

func newMockEmbedder(keywords ...string) *mockEmbedder {
	if len(keywords) == 0 {
		keywords = []string{"refund", "card", "loan", "fraud"}
	}
	return &mockEmbedder{keywords: keywords, model: "mock-embed"}
}

func (m *mockEmbedder) nextErr() error {
	n := int(m.calls.Add(1)) - 1
	if len(m.errs) == 0 {
		return nil
	}
	if n >= len(m.errs) {
		return m.errs[len(m.errs)-1]
	}
	return m.errs[n]
}

func (m *mockEmbedder) vector(text string) []float32 {
	if m.override != nil {
		return m.override
	}
	lower := strings.ToLower(text)
	v := make([]float32, len(m.keywords))
	for i, k := range m.keywords {
		v[i] = float32(strings.Count(lower, k))
	}
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.hook != nil {
		if err := m.hook(ctx, text); err != nil {
			m.calls.Add(1)
			return nil, err
		}
	}
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	if m.hook != nil {
		if err := m.hook(ctx, strings.Join(texts, "\n")); err != nil {
			m.calls.Add(1)
			return nil, err
		}
	}
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int {
	return len(m.keywords)
}

func (m *mockEmbedder) ModelName() string {
	return m.model
}

func (m *mockEmbedder) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbedder) Close() error {
	return nil
}

func (m *mockEmbedder) embedded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// mockVectorIndex implements driven.VectorIndex with canned search results.
type mockVectorIndex struct {
	hits      []domain.RetrievedEvidence
	searchErr error

	mu          sync.Mutex
	searchCalls int
	lastTopK    int
	lastColl    string
}

func (m *mockVectorIndex) EnsureCollection(_ context.Context, _, _ string, _ int) error {
	return nil
}

func (m *mockVectorIndex) DropCollection(_ context.Context, _ string) error {
	return nil
}

func (m *mockVectorIndex) Collections(_ context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockVectorIndex) Upsert(_ context.Context, _ string, _ []driven.VectorRecord) error {
	return nil
}

func (m *mockVectorIndex) ReplaceDocument(
	_ context.Context, _ string, _ domain.DocumentRecord, _ []driven.VectorRecord,
) (int, error) {
	return 1, nil
}

func (m *mockVectorIndex) DocumentHash(_ context.Context, _, _ string) (string, int, error) {
	return "", 0, domain.ErrNotFound
}

func (m *mockVectorIndex) DeleteDocument(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockVectorIndex) Delete(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, collection string, _ []float32, topK int) ([]domain.RetrievedEvidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastTopK = topK
	m.lastColl = collection
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if topK < len(m.hits) {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Stats(_ context.Context, name string) (domain.CollectionStats, error) {
	return domain.CollectionStats{Name: name}, nil
}

func (m *mockVectorIndex) Close() error {
	return nil
}

// mockPipeline implements driven.PostProcessorPipeline, one chunk per paragraph.
type mockPipeline struct {
	err error
}

func (m *mockPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	var chunks []domain.Chunk
	for i, p := range strings.Split(doc.Content, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" || p == "---" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:          doc.ID + "#" + string(rune('a'+i)),
			DocumentID:  doc.ID,
			Content:     p,
			Section:     doc.Title,
			Department:  doc.Department,
			Position:    i,
			ContentHash: domain.HashContent(p),
		})
	}
	return chunks, nil
}

// mockRegistry implements driven.NormaliserRegistry, passing text through.
type mockRegistry struct{}

func (mockRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw.MIMEType != "text/plain" {
		return nil, domain.ErrUnsupportedType
	}
	id, _ := raw.Metadata[domain.MetaDocumentID].(string)
	return &driven.NormaliseResult{Document: domain.Document{
		ID:      id,
		URI:     raw.URI,
		Title:   id,
		Content: string(raw.Content),
	}}, nil
}

func (mockRegistry) Register(_ driven.Normaliser) {}

func (mockRegistry) SupportedMIMETypes() []string {
	return []string{"text/plain"}
}

// mockConnector implements driven.Connector over fixed documents and changes.
type mockConnector struct {
	docs        []domain.RawDocument
	errs        []error
	changes     chan domain.RawDocumentChange
	validateErr error
}

func (m *mockConnector) Type() string {
	return "mock"
}

func (m *mockConnector) Validate(_ context.Context) error {
	return m.validateErr
}

func (m *mockConnector) FullSync(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, len(m.docs))
	errs := make(chan error, len(m.errs))
	for _, d := range m.docs {
		docs <- d
	}
	for _, e := range m.errs {
		errs <- e
	}
	close(docs)
	close(errs)
	return docs, errs
}

func (m *mockConnector) Watch(_ context.Context) (<-chan domain.RawDocumentChange, error) {
	return m.changes, nil
}

func (m *mockConnector) Close() error {
	return nil
}

// mockCache implements driven.EmbeddingCache over a map.
type mockCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	getErr  error
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]float32)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, vector []float32, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = vector
	m.sets++
	return nil
}

func (m *mockCache) Close() error {
	return nil
}

// --- Test helpers ---

// testConfig returns the default config with fast retries.
func testConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Backend.InitialBackoff = time.Millisecond
	cfg.Backend.MaxBackoff = 2 * time.Millisecond
	cfg.Backend.EmbedTimeout = time.Second
	cfg.Backend.SearchTimeout = time.Second
	return cfg
}

func evidence(docID, chunkID string, sim float64, content string) domain.RetrievedEvidence {
	return domain.RetrievedEvidence{
		Chunk: domain.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Content:    content,
			Section:    "Refunds",
			Department: "CARD",
		},
		Title:        "Card Policy",
		DocumentType: domain.DocumentTypePolicy,
		Similarity:   sim,
	}
}

// stallingIndex wraps a memory index and blocks the selected operations
// until the call's context expires.
type stallingIndex struct {
	*memory.VectorIndex
	stall map[string]bool
	mu    sync.Mutex
	calls map[string]int
}

func newStallingIndex(ops ...string) *stallingIndex {
	s := &stallingIndex{VectorIndex: memory.NewVectorIndex(), stall: map[string]bool{}, calls: map[string]int{}}
	for _, op := range ops {
		s.stall[op] = true
	}
	return s
}

func (s *stallingIndex) block(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
	if !s.stall[op] {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stallingIndex) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stallingIndex) EnsureCollection(ctx context.Context, collection, model string, dim int) error {
	if err := s.block(ctx, "ensure"); err != nil {
		return err
	}
	return s.VectorIndex.EnsureCollection(ctx, collection, model, dim)
}

func (s *stallingIndex) DropCollection(ctx context.Context, collection string) error {
	if err := s.block(ctx, "drop"); err != nil {
		return err
	}
	return s.VectorIndex.DropCollection(ctx, collection)
}

func (s *stallingIndex) DeleteDocument(ctx context.Context, collection, documentID string) error {
	if err := s.block(ctx, "delete"); err != nil {
		return err
	}
	return s.VectorIndex.DeleteDocument(ctx, collection, documentID)
}

func (s *stallingIndex) DocumentHash(ctx context.Context, collection, documentID string) (string, int, error) {
	if err := s.block(ctx, "hash"); err != nil {
		return "", 0, err
	}
	return s.VectorIndex.DocumentHash(ctx, collection, documentID)
}
