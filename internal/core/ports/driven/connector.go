package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Connector reads policy files from a corpus location.
type Connector interface {
	// Type names the connector ("filesystem").
	Type() string

	// Validate fails when the location is missing or unreadable.
	Validate(ctx context.Context) error

	// FullSync streams every supported file under the location. A file
	// that cannot be read is reported on the error channel and skipped.
	// Both channels close when the walk ends or ctx is done.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch streams created, modified and deleted files until ctx is done.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	Close() error
}
