package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.WatchService = (*WatchService)(nil)

// WatchService re-ingests changed documents and removes deleted ones.
type WatchService struct {
	ingest   driving.IngestService
	registry driven.NormaliserRegistry
}

// NewWatchService creates a watch service.
func NewWatchService(ingest driving.IngestService, registry driven.NormaliserRegistry) *WatchService {
	return &WatchService{ingest: ingest, registry: registry}
}

// Watch applies change events from source until ctx is cancelled or the
// source stops. Failures on individual events are logged and skipped.
func (w *WatchService) Watch(ctx context.Context, collection string, source driven.Connector) error {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return err
	}

	changes, err := source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s source: %w", source.Type(), err)
	}
	logger.Info("Watching for changes into %s", collection)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := w.apply(ctx, collection, change); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("Failed to apply %s for %s: %v", change.Type, change.Document.URI, err)
			}
		}
	}
}

func (w *WatchService) apply(ctx context.Context, collection string, change domain.RawDocumentChange) error {
	switch change.Type {
	case domain.ChangeCreated, domain.ChangeUpdated:
		logger.Debug("Processing: %s", change.Document.URI)
		result, err := w.registry.Normalise(ctx, &change.Document)
		if err != nil {
			return fmt.Errorf("normalise: %w", err)
		}
		report, err := w.ingest.IngestDocument(ctx, collection, result.Document)
		if err != nil {
			return err
		}
		for _, r := range report.Results {
			logger.Info("%s: %s (%d chunks)", r.DocumentID, r.Status, r.Chunks)
		}
		return nil

	case domain.ChangeDeleted:
		id, _ := change.Document.Metadata[domain.MetaDocumentID].(string)
		if id == "" {
			return fmt.Errorf("%w: deleted document has no id", domain.ErrInvalidInput)
		}
		logger.Debug("Deleting: %s", change.Document.URI)
		return w.ingest.RemoveDocument(ctx, collection, id)

	default:
		return fmt.Errorf("%w: change type %d", domain.ErrUnsupportedType, change.Type)
	}
}
