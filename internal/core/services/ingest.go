package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/observability"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Skip reasons recorded in ingest reports.
const (
	reasonBackendUnavailable = "backend unavailable"
)

var (
	blankLineRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns     = regexp.MustCompile(`[ \t\f\v]+`)
	trailingSpace = regexp.MustCompile(` +\n`)
)

// NormaliseContent canonicalises document text before hashing and chunking:
// line endings become LF, runs of spaces collapse, three or more line
// breaks collapse to one blank line, and the result is trimmed.
// Text that is not valid UTF-8 or contains NUL bytes is malformed.
func NormaliseContent(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrMalformedDocument)
	}
	if strings.ContainsRune(text, 0) {
		return "", fmt.Errorf("%w: content contains NUL bytes", domain.ErrMalformedDocument)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

// IngestService chunks, embeds and indexes documents. Runs against the same
// collection are serialised; different collections proceed in parallel.
type IngestService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	pipeline driven.PostProcessorPipeline
	registry driven.NormaliserRegistry
	retry    *retrier
	metrics  *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIngestService creates an ingest service. registry is only needed by
// IngestSource and may be nil otherwise. metrics may be nil.
func NewIngestService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	pipeline driven.PostProcessorPipeline,
	registry driven.NormaliserRegistry,
	backend domain.BackendConfig,
	metrics *observability.Metrics,
) *IngestService {
	return &IngestService{
		embedder: embedder,
		index:    index,
		pipeline: pipeline,
		registry: registry,
		retry:    newRetrier(backend, metrics),
		metrics:  metrics,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lock serialises writers of one collection and returns the unlock func.
func (s *IngestService) lock(collection string) func() {
	s.mu.Lock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Ingest indexes docs into collection. Per-document failures are recorded
// in the report; only an invalid collection, an embedder mismatch, an
// unreachable index or cancellation fail the call. On cancellation the partial report is
// returned with the context error.
func (s *IngestService) Ingest(
	ctx context.Context,
	collection string,
	docs []domain.Document,
	opts domain.IngestOptions,
) (*domain.IngestReport, error) {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	unlock := s.lock(collection)
	defer unlock()

	ctx, span := observability.StartSpan(ctx, "verity.ingest",
		attribute.String("verity.collection", collection),
		attribute.Int("verity.documents", len(docs)),
		attribute.Bool("verity.force", opts.Force),
		attribute.Bool("verity.reindex", opts.Reindex),
	)
	defer span.End()

	report := &domain.IngestReport{
		RunID:      uuid.NewString(),
		Collection: collection,
		Results:    []domain.DocumentResult{},
	}

	logger.Section("Ingest " + collection)
	if err := s.prepareCollection(ctx, collection, opts.Reindex); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	for i := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.ingestOne(ctx, collection, docs[i], opts, report); err != nil {
			return report, err
		}
	}

	span.SetAttributes(
		attribute.Int("verity.chunks_created", report.ChunksCreated),
		attribute.Int("verity.skipped", len(report.Skipped)),
	)
	logger.Info("Ingest complete: %d ingested, %d unchanged, %d skipped, %d chunks created",
		report.DocumentsIngested, report.DocumentsUnchanged, len(report.Skipped), report.ChunksCreated)
	return report, nil
}

// IngestDocument ingests a single document with default options.
func (s *IngestService) IngestDocument(
	ctx context.Context,
	collection string,
	doc domain.Document,
) (*domain.IngestReport, error) {
	return s.Ingest(ctx, collection, []domain.Document{doc}, domain.IngestOptions{})
}

// IngestSource drains a connector, normalises each raw document and
// ingests the result. Read and normalisation failures are recorded in the
// report alongside ingestion failures.
//
//nolint:gocognit // Orchestration function coordinating multiple async operations
func (s *IngestService) IngestSource(
	ctx context.Context,
	collection string,
	source driven.Connector,
	opts domain.IngestOptions,
) (*domain.IngestReport, error) {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if s.registry == nil {
		return nil, fmt.Errorf("ingest source: normaliser registry not configured")
	}
	if err := source.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate %s source: %w", source.Type(), err)
	}

	var (
		docs     []domain.Document
		skipped  []domain.SkippedDocument
		warnings []string
	)

	docsCh, errsCh := source.FullSync(ctx)
	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			logger.Warn("Source error: %v", err)
			warnings = append(warnings, err.Error())

		case raw, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			logger.Debug("Normalising: %s", raw.URI)
			result, err := s.registry.Normalise(ctx, &raw)
			if err != nil {
				id, _ := raw.Metadata[domain.MetaDocumentID].(string)
				logger.Warn("Skipping %s: %v", raw.URI, err)
				skipped = append(skipped, domain.SkippedDocument{DocumentID: id, URI: raw.URI, Reason: err.Error()})
				warnings = append(warnings, fmt.Sprintf("%s: %v", raw.URI, err))
				continue
			}
			docs = append(docs, result.Document)
		}
	}

	report, err := s.Ingest(ctx, collection, docs, opts)
	if report != nil {
		report.Skipped = append(skipped, report.Skipped...)
		report.Warnings = append(warnings, report.Warnings...)
	}
	return report, err
}

// RemoveDocument deletes a document and its chunks.
func (s *IngestService) RemoveDocument(ctx context.Context, collection, documentID string) error {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return err
	}
	if documentID == "" {
		return fmt.Errorf("%w: document id must not be empty", domain.ErrInvalidArgument)
	}

	unlock := s.lock(collection)
	defer unlock()

	err := s.retry.do(ctx, "delete_document", s.retry.cfg.SearchTimeout, func(ctx context.Context) error {
		return s.index.DeleteDocument(ctx, collection, documentID)
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	logger.Info("Removed %s from %s", documentID, collection)
	return nil
}

// prepareCollection creates the collection for the current embedder,
// dropping it first when reindexing.
func (s *IngestService) prepareCollection(ctx context.Context, collection string, reindex bool) error {
	model, dim := s.embedder.ModelName(), s.embedder.Dimensions()

	if reindex {
		logger.Info("Reindexing %s", collection)
		err := s.retry.do(ctx, "drop_collection", s.retry.cfg.SearchTimeout, func(ctx context.Context) error {
			return s.index.DropCollection(ctx, collection)
		})
		if err != nil {
			return fmt.Errorf("drop collection %s: %w", collection, err)
		}
	}
	err := s.retry.do(ctx, "ensure_collection", s.retry.cfg.SearchTimeout, func(ctx context.Context) error {
		return s.index.EnsureCollection(ctx, collection, model, dim)
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmbedderMismatch) {
			return fmt.Errorf("collection %s: %w (re-ingest with reindex to rebuild)", collection, err)
		}
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	return nil
}

// ingestOne processes a single document into the report. It returns an
// error only when ctx is cancelled.
//
//nolint:gocyclo // Pipeline orchestration with sequential steps
func (s *IngestService) ingestOne(
	ctx context.Context,
	collection string,
	doc domain.Document,
	opts domain.IngestOptions,
	report *domain.IngestReport,
) error {
	skip := func(reason string) {
		logger.Warn("Skipping document %q: %s", doc.ID, reason)
		report.Skipped = append(report.Skipped, domain.SkippedDocument{
			DocumentID: doc.ID,
			URI:        doc.URI,
			Reason:     reason,
		})
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", displayID(doc), reason))
		report.Results = append(report.Results, domain.DocumentResult{
			DocumentID: doc.ID,
			Status:     domain.IngestSkipped,
		})
		s.metrics.ObserveDocument(collection, string(domain.IngestSkipped))
	}

	// 1. NORMALISE
	if strings.TrimSpace(doc.ID) == "" {
		skip(fmt.Sprintf("%v: missing document id", domain.ErrMalformedDocument))
		return nil
	}
	content, err := NormaliseContent(doc.Content)
	if err != nil {
		skip(err.Error())
		return nil
	}
	if content == "" {
		skip(fmt.Sprintf("%v: empty document", domain.ErrMalformedDocument))
		return nil
	}
	doc.Content = content
	doc.ContentHash = domain.HashContent(content)
	if !doc.DocumentType.IsValid() {
		doc.DocumentType = domain.DocumentTypeGeneral
	}
	if doc.Title == "" {
		doc.Title = doc.ID
	}

	// 2. CHECK FOR CHANGES
	var storedHash string
	var storedChunks int
	err = s.retry.do(ctx, "document_hash", s.retry.cfg.SearchTimeout, func(ctx context.Context) error {
		var err error
		storedHash, storedChunks, err = s.index.DocumentHash(ctx, collection, doc.ID)
		return err
	})
	exists := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		skip(fmt.Sprintf("%s: %v", reasonBackendUnavailable, err))
		return nil
	}
	if exists && storedHash == doc.ContentHash && !opts.Force {
		logger.Debug("Unchanged: %s", doc.ID)
		report.DocumentsUnchanged++
		report.ChunksSkipped += storedChunks
		report.Results = append(report.Results, domain.DocumentResult{
			DocumentID: doc.ID,
			Status:     domain.IngestUnchanged,
			Chunks:     storedChunks,
		})
		s.metrics.ObserveDocument(collection, string(domain.IngestUnchanged))
		s.metrics.AddChunks(collection, "skipped", storedChunks)
		return nil
	}

	// 3. RUN POST-PROCESSOR PIPELINE
	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		skip(fmt.Sprintf("%v: %v", domain.ErrMalformedDocument, err))
		return nil
	}
	if len(chunks) == 0 {
		skip(fmt.Sprintf("%v: no chunks produced", domain.ErrMalformedDocument))
		return nil
	}

	// 4. EMBED
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		skip(fmt.Sprintf("%s: %v", reasonBackendUnavailable, err))
		return nil
	}

	// 5. REPLACE ATOMICALLY
	records := make([]driven.VectorRecord, len(chunks))
	for i := range chunks {
		records[i] = driven.VectorRecord{Chunk: chunks[i], Embedding: vecs[i]}
	}
	rec := domain.DocumentRecord{
		ID:           doc.ID,
		URI:          doc.URI,
		Title:        doc.Title,
		DocumentType: doc.DocumentType,
		Department:   doc.Department,
		ContentHash:  doc.ContentHash,
	}

	var version int
	err = s.retry.do(ctx, "replace_document", s.retry.cfg.SearchTimeout, func(ctx context.Context) error {
		var err error
		version, err = s.index.ReplaceDocument(ctx, collection, rec, records)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		skip(fmt.Sprintf("%s: %v", reasonBackendUnavailable, err))
		return nil
	}

	status := domain.IngestCreated
	if exists {
		status = domain.IngestUpdated
	}
	logger.Debug("%s %s: %d chunks, version %d", status, doc.ID, len(chunks), version)
	report.DocumentsIngested++
	report.ChunksCreated += len(chunks)
	report.Results = append(report.Results, domain.DocumentResult{
		DocumentID: doc.ID,
		Status:     status,
		Chunks:     len(chunks),
		Version:    version,
	})
	s.metrics.ObserveDocument(collection, string(status))
	s.metrics.AddChunks(collection, "created", len(chunks))
	return nil
}

func displayID(doc domain.Document) string {
	if doc.ID != "" {
		return doc.ID
	}
	if doc.URI != "" {
		return doc.URI
	}
	return "<unnamed>"
}
