// Package plaintext normalises plain text policy documents.
package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/plain"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts a raw document to a normalised document.
// The Content field contains the body after any front matter.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	fm, body, err := normalisers.SplitFrontMatter(string(raw.Content))
	if err != nil {
		return nil, err
	}

	doc, err := normalisers.BuildDocument(raw, fm, body, firstHeading(body))
	if err != nil {
		return nil, err
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// firstHeading returns the first non-blank line when it reads as a title:
// short, no terminal punctuation, not a separator rule.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Trim(line, "=-") == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line == "" || len(line) > 80 || strings.ContainsAny(line[len(line)-1:], ".,;:!?") {
			return ""
		}
		return line
	}
	return ""
}
