// Package enricher attaches routing and retrieval metadata to chunks.
package enricher

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Name identifies the processor in pipeline configuration.
const Name = "enricher"

// DefaultMaxTerms is the default number of key terms kept per chunk.
const DefaultMaxTerms = 5

// minTermLength is the shortest word considered a key term.
const minTermLength = 4

var (
	departmentDecl = regexp.MustCompile(`(?i)\*{0,2}department\s+code\*{0,2}\s*:\s*\*{0,2}\s*([a-z][a-z0-9_-]{1,15})`)
	wordPattern    = regexp.MustCompile(`[a-z]+`)
)

// Processor enriches chunks with title, document type, department,
// key terms and character count. It implements the PostProcessor interface.
type Processor struct {
	maxTerms int
}

// Option configures the enricher.
type Option func(*Processor)

// WithMaxTerms sets how many key terms are kept per chunk.
func WithMaxTerms(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTerms = n
		}
	}
}

// New creates an enricher.
func New(opts ...Option) *Processor {
	p := &Processor{maxTerms: DefaultMaxTerms}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process annotates chunks in place.
//
// A chunk's department is the first declaration it contains, else the last
// declaration seen earlier under the same major heading, else the
// document default.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	scope := -1
	carried := ""

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &chunks[i]
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}

		if s, _ := c.Metadata[domain.MetaScope].(int); s != scope {
			scope = s
			carried = ""
		}

		decls := Departments(c.Content)
		switch {
		case len(decls) > 0:
			c.Department = decls[0]
			carried = decls[len(decls)-1]
		case carried != "":
			c.Department = carried
		default:
			c.Department = strings.ToUpper(doc.Department)
		}

		c.Metadata[domain.MetaTitle] = doc.Title
		c.Metadata[domain.MetaDocumentType] = string(doc.DocumentType)
		c.Metadata[domain.MetaCharCount] = utf8.RuneCountInString(c.Content)
		c.Metadata[domain.MetaKeyTerms] = KeyTerms(c.Content, p.maxTerms)
	}

	return chunks, nil
}

// Departments returns the department codes declared in text, in order.
func Departments(text string) []string {
	var out []string
	for _, m := range departmentDecl.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.ToUpper(m[1]))
	}
	return out
}

// KeyTerms returns the n most frequent non-stopword words of at least four
// letters. Ties are broken alphabetically.
func KeyTerms(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) < minTermLength {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		counts[w]++
	}

	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {}, "also": {},
	"been": {}, "before": {}, "being": {}, "below": {}, "between": {}, "both": {},
	"could": {}, "does": {}, "doing": {}, "down": {}, "during": {}, "each": {},
	"from": {}, "further": {}, "have": {}, "having": {}, "here": {}, "into": {},
	"just": {}, "more": {}, "most": {}, "must": {}, "only": {}, "other": {},
	"over": {}, "same": {}, "shall": {}, "should": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "those": {}, "through": {}, "under": {},
	"until": {}, "upon": {}, "very": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "will": {}, "with": {}, "within": {},
	"would": {}, "your": {}, "yours": {},
}
