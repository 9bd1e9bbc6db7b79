// Package chunker splits documents into section-aware, overlapping chunks.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Name identifies the processor in pipeline configuration.
const Name = "chunker"

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of trailing characters carried
// into a continuation chunk.
const DefaultChunkOverlap = 100

// DefaultMinChunkSize is the size below which a fragment is merged into its
// neighbour, or discarded when it holds no letters or digits.
const DefaultMinChunkSize = 50

// fallbackSection labels text before the first heading of an untitled document.
const fallbackSection = "General"

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://verity.custodia-labs.dev/chunk"))

// Processor splits document content into chunks along section boundaries.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	minSize   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithMinSize sets the size below which fragments are merged into a
// neighbour and symbol-only sections are discarded.
func WithMinSize(size int) Option {
	return func(p *Processor) {
		if size >= 0 {
			p.minSize = size
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		minSize:   DefaultMinChunkSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}
	if p.minSize >= p.chunkSize {
		p.minSize = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// A document with any non-blank text yields at least one chunk.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	fallback := doc.Title
	if fallback == "" {
		fallback = fallbackSection
	}

	var chunks []domain.Chunk
	for _, s := range splitSections(doc.Content, fallback) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.hasContent() || p.isArtefact(s) {
			continue
		}
		for _, text := range p.pack(p.units(s.body())) {
			chunks = append(chunks, newChunk(doc, s, len(chunks), text))
		}
	}

	// Headings only: keep the text rather than lose the document.
	if len(chunks) == 0 {
		whole := &section{label: fallback}
		for _, text := range p.pack(p.units(doc.Content)) {
			chunks = append(chunks, newChunk(doc, whole, len(chunks), text))
		}
	}

	return chunks, nil
}

// isArtefact reports a short section body made only of symbols,
// such as a stray rule or bullet left behind by a converter.
func (p *Processor) isArtefact(s *section) bool {
	text := s.content()
	if runeLen(text) >= p.minSize {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func newChunk(doc *domain.Document, s *section, position int, text string) domain.Chunk {
	hash := domain.HashContent(text)
	id := uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s|%d|%s", doc.ID, position, hash)))
	return domain.Chunk{
		ID:          id.String(),
		DocumentID:  doc.ID,
		Content:     text,
		Section:     s.label,
		Position:    position,
		ContentHash: hash,
		Metadata: map[string]any{
			domain.MetaScope: s.scope,
		},
	}
}

// units breaks a section body into pieces no longer than the chunk size:
// whole paragraphs where they fit, else sentences, else word runs.
func (p *Processor) units(body string) []unit {
	var out []unit
	for _, para := range paragraphs(body) {
		if runeLen(para) <= p.chunkSize {
			out = append(out, unit{text: para, sep: "\n\n"})
			continue
		}
		for i, sent := range splitSentences(para) {
			sep := sent.sep
			if i == 0 {
				sep = "\n\n"
			}
			if runeLen(sent.text) <= p.chunkSize {
				out = append(out, unit{text: sent.text, sep: sep})
				continue
			}
			for j, piece := range splitWords(sent.text, p.chunkSize) {
				if j > 0 {
					sep = " "
				}
				out = append(out, unit{text: piece, sep: sep})
			}
		}
	}
	return p.mergeShort(out)
}

// mergeShort joins each unit shorter than the minimum size to the units
// after it, and a short last unit to the one before, so a fragment never
// stands alone at a chunk boundary. Joins that would exceed the chunk size
// are skipped.
func (p *Processor) mergeShort(units []unit) []unit {
	if p.minSize == 0 || len(units) < 2 {
		return units
	}

	out := make([]unit, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		for runeLen(u.text) < p.minSize && i+1 < len(units) {
			next := units[i+1]
			if runeLen(u.text)+runeLen(next.sep)+runeLen(next.text) > p.chunkSize {
				break
			}
			u.text += next.sep + next.text
			i++
		}
		out = append(out, u)
	}

	if n := len(out); n > 1 {
		prev, last := out[n-2], out[n-1]
		if runeLen(last.text) < p.minSize && runeLen(prev.text)+runeLen(last.sep)+runeLen(last.text) <= p.chunkSize {
			out[n-2].text = prev.text + last.sep + last.text
			out = out[:n-1]
		}
	}
	return out
}

// pack greedily fills chunks with units. Each continuation chunk opens with
// the tail of its predecessor. A last chunk still shorter than the minimum
// size takes in as much of its predecessor's tail as fits.
func (p *Processor) pack(units []unit) []string {
	var out []string
	cur, fresh := "", ""

	for _, u := range units {
		if cur == "" {
			cur, fresh = u.text, u.text
			continue
		}
		if runeLen(cur)+runeLen(u.sep)+runeLen(u.text) <= p.chunkSize {
			cur += u.sep + u.text
			fresh += u.sep + u.text
			continue
		}

		out = append(out, cur)
		next := u.text
		if tail := fitOverlap(overlapTail(cur, p.overlap), u.text, p.chunkSize); tail != "" {
			next = tail + " " + u.text
		}
		cur, fresh = next, u.text
	}
	if cur == "" {
		return out
	}

	if len(out) > 0 && runeLen(cur) < p.minSize {
		if tail := fitOverlap(overlapTail(out[len(out)-1], p.chunkSize), fresh, p.chunkSize); tail != "" {
			cur = tail + " " + fresh
		}
	}
	return append(out, cur)
}

// overlapTail returns the trailing sentences of text totalling at most limit
// runes, or trailing words when the last sentence alone is too long.
func overlapTail(text string, limit int) string {
	if limit <= 0 {
		return ""
	}

	sentences := splitSentences(text)
	var picked []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		add := runeLen(sentences[i].text)
		if len(picked) > 0 {
			add++
		}
		if total+add > limit {
			break
		}
		picked = append([]string{sentences[i].text}, picked...)
		total += add
	}
	if len(picked) > 0 {
		return strings.Join(picked, " ")
	}

	words := strings.Fields(text)
	total = 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := runeLen(words[i])
		if start < len(words) {
			add++
		}
		if total+add > limit {
			break
		}
		total += add
		start = i
	}
	return strings.Join(words[start:], " ")
}

// fitOverlap drops leading words from tail until tail + " " + next fits.
func fitOverlap(tail, next string, limit int) string {
	for tail != "" && runeLen(tail)+1+runeLen(next) > limit {
		idx := strings.IndexByte(tail, ' ')
		if idx < 0 {
			return ""
		}
		tail = tail[idx+1:]
	}
	return tail
}
