package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML page to policy text.
// <meta name="department"> and <meta name="document_type"> act like front matter.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page := string(raw.Content)
	fm := normalisers.FrontMatter{
		Title:        extractTitle(page),
		Department:   metaContent(page, "department"),
		DocumentType: metaContent(page, "document_type"),
	}

	doc, err := normalisers.BuildDocument(raw, fm, toText(page), "")
	if err != nil {
		return nil, err
	}
	doc.Metadata["format"] = "html"

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaTag           = regexp.MustCompile(`(?is)<meta\s+name=["']([^"']+)["']\s+content=["']([^"']*)["'][^>]*>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTag            = regexp.MustCompile(`(?is)<(nav|footer)[^>]*>.*?</(nav|footer)>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	sourceBreaks      = regexp.MustCompile(`\s*\n\s*`)
	headingTag        = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	boldTag           = regexp.MustCompile(`(?is)<(strong|b)(\s[^>]*)?>(.*?)</(strong|b)>`)
	listItem          = regexp.MustCompile(`(?i)<li[^>]*>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|li|tr|blockquote|pre|table|section|article|ul|ol)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|tr|blockquote|pre|table|section|article|ul|ol)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// extractTitle returns the <title> text, or the first <h1>.
func extractTitle(page string) string {
	if m := titleTag.FindStringSubmatch(page); m != nil {
		if title := inlineText(m[1]); title != "" {
			return title
		}
	}
	if m := headingTag.FindStringSubmatch(page); m != nil && m[1] == "1" {
		return inlineText(m[2])
	}
	return ""
}

// metaContent returns the content of <meta name="name">.
func metaContent(page, name string) string {
	for _, m := range metaTag.FindAllStringSubmatch(page, -1) {
		if strings.EqualFold(m[1], name) {
			return html.UnescapeString(strings.TrimSpace(m[2]))
		}
	}
	return ""
}

// inlineText strips tags and entities from a fragment and joins its lines.
func inlineText(fragment string) string {
	text := html.UnescapeString(allTags.ReplaceAllString(fragment, ""))
	return strings.Join(strings.Fields(text), " ")
}

// toText turns page markup into paragraph text with Markdown headings.
func toText(page string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, navTag, htmlComments} {
		page = re.ReplaceAllString(page, "")
	}
	// Source line breaks are whitespace; only markup breaks lines.
	page = sourceBreaks.ReplaceAllString(page, " ")

	page = headingTag.ReplaceAllStringFunc(page, func(tag string) string {
		m := headingTag.FindStringSubmatch(tag)
		level := int(m[1][0] - '0')
		return "\n\n" + strings.Repeat("#", level) + " " + inlineText(m[2]) + "\n\n"
	})
	page = boldTag.ReplaceAllStringFunc(page, func(tag string) string {
		m := boldTag.FindStringSubmatch(tag)
		if text := inlineText(m[3]); text != "" {
			return "**" + text + "**"
		}
		return ""
	})

	page = listItem.ReplaceAllString(page, "\n- ")
	page = openBlockElements.ReplaceAllString(page, "\n\n")
	page = blockElements.ReplaceAllString(page, "\n\n")
	page = brTags.ReplaceAllString(page, "\n")
	page = hrTags.ReplaceAllString(page, "\n\n")

	page = allTags.ReplaceAllString(page, "")
	page = strings.ReplaceAll(html.UnescapeString(page), "\u00a0", " ")
	page = multiSpaces.ReplaceAllString(page, " ")

	// Trim each line; blank lines mark paragraph breaks.
	lines := strings.Split(page, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	page = multiNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(page)
}
