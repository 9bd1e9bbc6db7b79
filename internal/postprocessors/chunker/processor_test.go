package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
		if p.minSize != DefaultMinChunkSize {
			t.Errorf("expected minSize %d, got %d", DefaultMinChunkSize, p.minSize)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkSize(500), WithOverlap(50), WithMinSize(10))
		if p.chunkSize != 500 || p.overlap != 50 || p.minSize != 10 {
			t.Errorf("unexpected processor %+v", p)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1), WithMinSize(-1))
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
		if p.minSize != DefaultMinChunkSize {
			t.Errorf("expected default minSize, got %d", p.minSize)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", New().Name())
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	p := New()
	for _, content := range []string{"", "   \n\n\t "} {
		chunks, err := p.Process(context.Background(), &domain.Document{ID: "d", Content: content}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for blank content, got %d", len(chunks))
		}
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.Document{
		ID:      "test-doc",
		Content: "This is a small piece of content.",
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small content, got %d", len(chunks))
	}

	c := chunks[0]
	if c.DocumentID != doc.ID {
		t.Errorf("expected DocumentID '%s', got '%s'", doc.ID, c.DocumentID)
	}
	if c.Content != doc.Content {
		t.Errorf("expected content to match document content, got %q", c.Content)
	}
	if c.Section != "General" {
		t.Errorf("expected fallback section 'General', got %q", c.Section)
	}
	if c.ContentHash != domain.HashContent(doc.Content) {
		t.Error("expected content hash of chunk text")
	}
}

func TestProcessor_Process_UntitledPreambleUsesTitle(t *testing.T) {
	p := New()
	doc := &domain.Document{ID: "faq", Title: "Customer FAQ", Content: "How do I reset my PIN? Visit any branch."}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Section != "Customer FAQ" {
		t.Fatalf("expected one chunk labelled with the title, got %+v", chunks)
	}
}

func TestProcessor_Process_Sections(t *testing.T) {
	content := `ATM CARD POLICY

Cards retained by an ATM are handled by the Card Operations Center.

Dispute Handling
----------------
Disputes are resolved within fourteen days of the complaint.`

	chunks, err := New().Process(context.Background(), &domain.Document{ID: "atm", Content: content}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}

	if chunks[0].Section != "ATM CARD POLICY" {
		t.Errorf("unexpected first section %q", chunks[0].Section)
	}
	if chunks[0].Content != "ATM CARD POLICY\n\nCards retained by an ATM are handled by the Card Operations Center." {
		t.Errorf("unexpected first content %q", chunks[0].Content)
	}
	if chunks[1].Section != "Dispute Handling" {
		t.Errorf("unexpected second section %q", chunks[1].Section)
	}
	if !strings.Contains(chunks[1].Content, "fourteen days") {
		t.Errorf("unexpected second content %q", chunks[1].Content)
	}
	if chunks[0].Metadata[domain.MetaScope] == chunks[1].Metadata[domain.MetaScope] {
		t.Error("major headings should open distinct scopes")
	}
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("expected position %d, got %d", i, c.Position)
		}
	}
}

func TestProcessor_Process_MarkdownAndBoldHeadings(t *testing.T) {
	content := `# Card Services

**Department Code**: COC

**Complaint Types Handled:**
- Card retention by ATM machine
- Lost or stolen card reporting`

	chunks, err := New().Process(context.Background(), &domain.Document{ID: "cards", Content: content}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}

	if chunks[0].Section != "Card Services" {
		t.Errorf("unexpected first section %q", chunks[0].Section)
	}
	if !strings.Contains(chunks[0].Content, "**Department Code**: COC") {
		t.Errorf("declaration line should stay in content, got %q", chunks[0].Content)
	}
	if chunks[1].Section != "Card Services / Complaint Types Handled" {
		t.Errorf("unexpected subsection label %q", chunks[1].Section)
	}
	if chunks[0].Metadata[domain.MetaScope] != chunks[1].Metadata[domain.MetaScope] {
		t.Error("bold subheadings should stay in the enclosing scope")
	}
}

func TestProcessor_Process_SeparatorFencedHeading(t *testing.T) {
	content := `=====================================
SECTION 2: COMPLAINT ROUTING
=====================================

Each category maps complaint types to departments.`

	chunks, err := New().Process(context.Background(), &domain.Document{ID: "routing", Content: content}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Section != "SECTION 2: COMPLAINT ROUTING" {
		t.Errorf("unexpected section %q", chunks[0].Section)
	}
	if strings.Contains(chunks[0].Content, "=====") {
		t.Errorf("separator lines should be dropped, got %q", chunks[0].Content)
	}
}

func TestProcessor_Process_HeadingsOnly(t *testing.T) {
	chunks, err := New().Process(context.Background(), &domain.Document{ID: "h", Content: "# Title"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("non-empty text must yield a chunk, got %d", len(chunks))
	}
}

func TestProcessor_Process_DropsSymbolArtefacts(t *testing.T) {
	content := "# Fees\n\nTransfers above the daily limit attract a fee.\n\n# Notes\n\n* * *"

	chunks, err := New().Process(context.Background(), &domain.Document{ID: "fees", Content: content}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Section != "Fees" {
		t.Fatalf("expected only the Fees chunk, got %+v", chunks)
	}
}

func TestProcessor_Process_BoundsAndOverlap(t *testing.T) {
	var sentences []string
	for i := 1; i <= 30; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence number %d covers policy details.", i))
	}
	doc := &domain.Document{ID: "long", Content: strings.Join(sentences, " ")}
	p := New(WithChunkSize(200), WithOverlap(60), WithMinSize(20))

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 200 {
			t.Errorf("chunk %d has %d chars, exceeds 200", i, n)
		}
		if i == 0 {
			continue
		}
		first := c.Content[:strings.Index(c.Content, ".")+1]
		if !strings.HasSuffix(chunks[i-1].Content, first) {
			t.Errorf("chunk %d should open with the tail of chunk %d: %q", i, i-1, first)
		}
	}

	if !strings.HasSuffix(chunks[len(chunks)-1].Content, "Sentence number 30 covers policy details.") {
		t.Error("last sentence should be in the last chunk")
	}
}

func TestProcessor_Process_OversizedWord(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.Document{ID: "x", Content: strings.Repeat("x", 250)}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Content) != 100 || len(chunks[2].Content) != 50 {
		t.Errorf("unexpected sizes %d, %d", len(chunks[0].Content), len(chunks[2].Content))
	}
}

func TestProcessor_Process_DeterministicIDs(t *testing.T) {
	content := "POLICY\n\nFirst paragraph of text.\n\nSECOND PART\n\nSecond paragraph of text."
	p := New()

	a, _ := p.Process(context.Background(), &domain.Document{ID: "doc-a", Content: content}, nil)
	b, _ := p.Process(context.Background(), &domain.Document{ID: "doc-a", Content: content}, nil)
	c, _ := p.Process(context.Background(), &domain.Document{ID: "doc-c", Content: content}, nil)

	if len(a) != 2 || len(b) != 2 || len(c) != 2 {
		t.Fatalf("expected 2 chunks each, got %d %d %d", len(a), len(b), len(c))
	}
	seen := map[string]bool{}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("chunk %d id changed between runs", i)
		}
		if a[i].ID == c[i].ID {
			t.Errorf("chunk %d id should depend on document id", i)
		}
		if seen[a[i].ID] {
			t.Errorf("duplicate chunk ID: %s", a[i].ID)
		}
		seen[a[i].ID] = true
	}
}

func TestProcessor_Process_IgnoresInputChunks(t *testing.T) {
	existing := []domain.Chunk{{ID: "existing", Content: "should be ignored"}}

	chunks, err := New().Process(context.Background(), &domain.Document{ID: "d", Content: "New content."}, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID == "existing" {
		t.Errorf("expected a fresh chunk, got %+v", chunks)
	}
}

func TestProcessor_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Process(ctx, &domain.Document{ID: "d", Content: "Some text."}, nil)
	if err == nil {
		t.Error("expected context error")
	}
}

func TestProcessor_Process_MergesShortFragments(t *testing.T) {
	first := strings.Repeat("word ", 19) + "ends."
	second := strings.Repeat("more ", 19) + "ends."

	t.Run("joins the following paragraph", func(t *testing.T) {
		p := New(WithChunkSize(120), WithOverlap(0), WithMinSize(30))
		doc := &domain.Document{ID: "fees", Content: first + "\n\nSee the fee table.\n\n" + second}

		chunks, err := p.Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
		if chunks[0].Content != first {
			t.Errorf("expected first chunk to hold only the first paragraph, got %q", chunks[0].Content)
		}
		if want := "See the fee table.\n\n" + second; chunks[1].Content != want {
			t.Errorf("expected fragment to open the second chunk, got %q", chunks[1].Content)
		}
	})

	t.Run("short tail borrows from its predecessor", func(t *testing.T) {
		body := strings.Repeat("Limits are reviewed. ", 5) + "Caps hold."
		p := New(WithChunkSize(120), WithOverlap(0), WithMinSize(30))
		doc := &domain.Document{ID: "limits", Content: body + "\n\nFees apply."}

		chunks, err := p.Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
		last := chunks[1].Content
		if n := utf8.RuneCountInString(last); n < 30 || n > 120 {
			t.Errorf("expected tail chunk within [30, 120] chars, got %d", n)
		}
		if !strings.HasSuffix(last, " Fees apply.") {
			t.Fatalf("expected tail chunk to end with the fragment, got %q", last)
		}
		if borrowed := strings.TrimSuffix(last, " Fees apply."); !strings.HasSuffix(chunks[0].Content, borrowed) {
			t.Errorf("expected borrowed text to come from the previous chunk, got %q", borrowed)
		}
	})

	t.Run("never crosses sections", func(t *testing.T) {
		content := "# Fees\n\nFees apply.\n\n# Limits\n\n" + first
		chunks, err := New(WithMinSize(30)).Process(context.Background(), &domain.Document{ID: "mixed", Content: content}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 2 {
			t.Fatalf("expected one chunk per section, got %d", len(chunks))
		}
		if chunks[0].Section != "Fees" || chunks[1].Section != "Limits" {
			t.Errorf("unexpected sections %q, %q", chunks[0].Section, chunks[1].Section)
		}
		if strings.Contains(chunks[1].Content, "Fees apply.") {
			t.Error("fragment leaked into the next section")
		}
	})
}
