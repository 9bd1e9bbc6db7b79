package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxHeadingChars is the longest line treated as a heading.
const maxHeadingChars = 80

// minSeparatorRunes is the shortest run of '=' or '-' treated as a separator.
const minSeparatorRunes = 10

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	boldHeading     = regexp.MustCompile(`^\*\*([^*]+)\*\*:?$`)
	paragraphBreak  = regexp.MustCompile(`\n[ \t]*\n`)
)

// section is a run of lines under one heading.
// Major headings (Markdown, ALL-CAPS, underlined) open a new scope;
// bold subheadings stay inside the current one.
type section struct {
	label  string
	scope  int
	lines  []string
	headed bool
}

func (s *section) body() string {
	return strings.Join(s.lines, "\n")
}

// content returns the trimmed text below the heading.
func (s *section) content() string {
	lines := s.lines
	if s.headed && len(lines) > 0 {
		lines = lines[1:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// hasContent reports whether the section holds text beyond its heading.
func (s *section) hasContent() bool {
	return s.content() != ""
}

// splitSections divides content into sections by heading lines.
// Text before the first heading is labelled with fallback.
func splitSections(content, fallback string) []*section {
	var sections []*section
	cur := &section{label: fallback}
	scope := 0
	major := ""

	start := func(title string, isMajor bool) {
		label := title
		if isMajor {
			scope++
			major = title
		} else if major != "" {
			label = major + " / " + title
		}
		sections = append(sections, cur)
		cur = &section{label: label, scope: scope, lines: []string{title}, headed: true}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if isSeparator(trimmed) {
			// An underline promotes the line above it to a heading.
			n := len(cur.lines)
			if n > 0 && !(cur.headed && n == 1) {
				prev := strings.TrimSpace(cur.lines[n-1])
				if looksLikeTitle(prev) && !startsWithMarker(prev) {
					cur.lines = cur.lines[:n-1]
					start(prev, true)
				}
			}
			cur.lines = append(cur.lines, "")
			continue
		}

		if m := markdownHeading.FindStringSubmatch(trimmed); m != nil {
			start(strings.TrimSpace(m[1]), true)
			continue
		}
		if m := boldHeading.FindStringSubmatch(trimmed); m != nil {
			title := strings.TrimSuffix(strings.TrimSpace(m[1]), ":")
			if title != "" {
				start(title, false)
				continue
			}
		}
		if isCapsHeading(trimmed) {
			start(trimmed, true)
			continue
		}

		cur.lines = append(cur.lines, line)
	}

	return append(sections, cur)
}

func isSeparator(line string) bool {
	if utf8.RuneCountInString(line) < minSeparatorRunes {
		return false
	}
	return strings.Trim(line, "=") == "" || strings.Trim(line, "-") == ""
}

func looksLikeTitle(line string) bool {
	if line == "" || utf8.RuneCountInString(line) > maxHeadingChars {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	return !strings.ContainsRune(".,;!?", last)
}

// startsWithMarker reports list, quote and table lines.
func startsWithMarker(line string) bool {
	first, _ := utf8.DecodeRuneInString(line)
	return strings.ContainsRune("-*+•>|✓✗", first)
}

func isCapsHeading(line string) bool {
	if !looksLikeTitle(line) {
		return false
	}
	if startsWithMarker(line) {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

// paragraphs splits text on blank lines, dropping empty fragments.
func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// unit is an indivisible piece of text and the separator that precedes it
// when it is not the first piece of a chunk.
type unit struct {
	text string
	sep  string
}

// splitSentences splits text at sentence ends and line breaks.
func splitSentences(text string) []unit {
	runes := []rune(text)
	var out []unit
	sep := ""
	start := 0

	for i := 0; i < len(runes); {
		r := runes[i]
		boundary := r == '\n' ||
			(strings.ContainsRune(".!?", r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]))
		if !boundary {
			i++
			continue
		}

		end := i + 1
		if r == '\n' {
			end = i
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, unit{text: s, sep: sep})
		}

		j := end
		newline := false
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' {
				newline = true
			}
			j++
		}
		if newline {
			sep = "\n"
		} else {
			sep = " "
		}
		start, i = j, j
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, unit{text: s, sep: sep})
	}
	return out
}

// splitWords packs words into pieces of at most limit runes.
// Words longer than limit are cut.
func splitWords(text string, limit int) []string {
	var out []string
	cur := ""
	for _, w := range strings.Fields(text) {
		for runeLen(w) > limit {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			r := []rune(w)
			out = append(out, string(r[:limit]))
			w = string(r[limit:])
		}
		switch {
		case cur == "":
			cur = w
		case runeLen(cur)+1+runeLen(w) <= limit:
			cur += " " + w
		default:
			out = append(out, cur)
			cur = w
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
