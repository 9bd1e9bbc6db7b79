package enricher

import (
	"context"
	"reflect"
	"testing"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "enricher" {
		t.Errorf("expected name 'enricher', got %q", New().Name())
	}
}

func TestDepartments(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"**Department Code**: COC", []string{"COC"}},
		{"Department code: frm", []string{"FRM"}},
		{"**Department Code**: TSU\nlater **Department Code**: DCS", []string{"TSU", "DCS"}},
		{"Route to COC instead", nil},
	}
	for _, tt := range tests {
		if got := Departments(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Departments(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestKeyTerms(t *testing.T) {
	text := "Card retention: a retained card is returned. Card retrieval takes hours; retention hours vary with the branch."

	got := KeyTerms(text, 3)
	want := []string{"card", "hours", "retention"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KeyTerms = %v, want %v", got, want)
	}

	if terms := KeyTerms("with that from this", 5); len(terms) != 0 {
		t.Errorf("stopwords should be dropped, got %v", terms)
	}
}

func TestProcessor_Process_Departments(t *testing.T) {
	doc := &domain.Document{ID: "policy", Title: "Complaints", DocumentType: domain.DocumentTypePolicy, Department: "cxs"}
	chunks := []domain.Chunk{
		{Content: "Overview of complaint handling.", Metadata: map[string]any{domain.MetaScope: 0}},
		{Content: "2.1 TRANSACTION DISPUTES\n**Department Code**: TSU", Metadata: map[string]any{domain.MetaScope: 1}},
		{Content: "Failed transfers and duplicate debits.", Metadata: map[string]any{domain.MetaScope: 1}},
		{Content: "2.2 CARD SERVICES\n**Department Code**: COC", Metadata: map[string]any{domain.MetaScope: 2}},
		{Content: "Card retention by ATM machine.", Metadata: map[string]any{domain.MetaScope: 2}},
		{Content: "3 ESCALATION", Metadata: map[string]any{domain.MetaScope: 3}},
	}

	out, err := New().Process(context.Background(), doc, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"CXS", "TSU", "TSU", "COC", "COC", "CXS"}
	for i, c := range out {
		if c.Department != want[i] {
			t.Errorf("chunk %d: department %q, want %q", i, c.Department, want[i])
		}
	}
}

func TestProcessor_Process_Metadata(t *testing.T) {
	doc := &domain.Document{ID: "faq", Title: "Customer FAQ", DocumentType: domain.DocumentTypeFAQ}
	chunks := []domain.Chunk{{Content: "Reset your PIN at any branch."}}

	out, err := New(WithMaxTerms(2)).Process(context.Background(), doc, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	md := out[0].Metadata
	if md[domain.MetaTitle] != "Customer FAQ" {
		t.Errorf("unexpected title %v", md[domain.MetaTitle])
	}
	if md[domain.MetaDocumentType] != "faq" {
		t.Errorf("unexpected document type %v", md[domain.MetaDocumentType])
	}
	if md[domain.MetaCharCount] != 29 {
		t.Errorf("unexpected char count %v", md[domain.MetaCharCount])
	}
	if terms, _ := md[domain.MetaKeyTerms].([]string); len(terms) != 2 {
		t.Errorf("expected 2 key terms, got %v", md[domain.MetaKeyTerms])
	}
	if out[0].Department != "" {
		t.Errorf("expected no department, got %q", out[0].Department)
	}
}
