// Package markdown normalises Markdown policy documents.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	codeBlock   = regexp.MustCompile("(?s)```.*?```")
	htmlComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	images      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	blockquote  = regexp.MustCompile(`(?m)^>\s?`)
	h1          = regexp.MustCompile(`(?m)^#\s+(.+?)\s*#*$`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts a markdown document to a normalised document.
// Headings and bold markers are kept because the chunker splits on them.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	fm, body, err := normalisers.SplitFrontMatter(string(raw.Content))
	if err != nil {
		return nil, err
	}

	title := ""
	if m := h1.FindStringSubmatch(body); m != nil {
		title = m[1]
	}

	doc, err := normalisers.BuildDocument(raw, fm, simplify(body), title)
	if err != nil {
		return nil, err
	}
	doc.Metadata["format"] = "markdown"

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// simplify drops markup that carries no policy text.
func simplify(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = htmlComment.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = blockquote.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
