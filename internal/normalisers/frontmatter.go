package normalisers

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// FrontMatter is the optional YAML header of a policy document.
type FrontMatter struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Department   string `yaml:"department"`
	DocumentType string `yaml:"document_type"`
}

const fence = "---"

// SplitFrontMatter separates a leading "---" fenced YAML block from the body.
// Content without front matter is returned unchanged with a zero FrontMatter.
func SplitFrontMatter(content string) (FrontMatter, string, error) {
	var fm FrontMatter

	text := strings.TrimPrefix(content, "\ufeff")
	first, rest, ok := strings.Cut(text, "\n")
	if !ok || strings.TrimSpace(first) != fence {
		return fm, content, nil
	}

	var header []string
	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == fence {
			if err := yaml.Unmarshal([]byte(strings.Join(header, "\n")), &fm); err != nil {
				return FrontMatter{}, "", fmt.Errorf("%w: front matter: %v", domain.ErrMalformedDocument, err)
			}
			return fm, strings.Join(lines[i+1:], "\n"), nil
		}
		header = append(header, line)
	}
	return FrontMatter{}, "", fmt.Errorf("%w: front matter is not closed", domain.ErrMalformedDocument)
}

// BuildDocument assembles a document from a raw document, its front matter
// and normalised body. Identity and classification fall back from front matter
// to connector metadata to the file name.
func BuildDocument(raw *domain.RawDocument, fm FrontMatter, body, headingTitle string) (domain.Document, error) {
	if !utf8.Valid(raw.Content) {
		return domain.Document{}, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrMalformedDocument, raw.URI)
	}

	docType := domain.DocumentType(firstNonEmpty(fm.DocumentType, metaString(raw.Metadata, domain.MetaDocumentType)))
	if docType == "" {
		docType = domain.DocumentTypeGeneral
	}
	if !docType.IsValid() {
		return domain.Document{}, fmt.Errorf("%w: unknown document_type %q", domain.ErrMalformedDocument, docType)
	}

	doc := domain.Document{
		ID:           firstNonEmpty(fm.ID, metaString(raw.Metadata, domain.MetaDocumentID), Stem(raw.URI)),
		URI:          raw.URI,
		Title:        firstNonEmpty(fm.Title, headingTitle, metaString(raw.Metadata, "title"), TitleFromURI(raw.URI)),
		Content:      body,
		DocumentType: docType,
		Department:   strings.ToUpper(strings.TrimSpace(fm.Department)),
		Metadata:     copyMetadata(raw.Metadata),
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	return doc, nil
}

// Stem returns the file name without directory or extension.
func Stem(uri string) string {
	base := filepath.Base(uri)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TitleFromURI extracts a human-readable title from a URI.
func TitleFromURI(uri string) string {
	title := strings.ReplaceAll(Stem(uri), "_", " ")
	return strings.ReplaceAll(title, "-", " ")
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
