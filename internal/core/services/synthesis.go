package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// TruncationSuffix marks an answer cut at the word limit.
const TruncationSuffix = "... [Additional details in sources]"

var questionStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "does": true, "for": true,
	"from": true, "how": true, "i": true, "if": true, "in": true, "is": true,
	"it": true, "my": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "why": true, "will": true, "with": true, "you": true, "your": true,
}

// Synthesize assembles an extractive answer from relevant evidence.
// Each chunk contributes the paragraph sharing most terms with the
// question, tagged with its citation marker. Near-duplicates of parts
// already taken are dropped.
func Synthesize(question string, evidence []domain.RetrievedEvidence, cfg domain.SynthesisConfig) string {
	qterms := termSet(question, true)

	type part struct {
		text   string
		tokens map[string]bool
	}
	var parts []part

	for i, ev := range evidence {
		para := bestParagraph(ev.Chunk.Content, qterms, cfg.MinParagraphChars)
		if para == "" {
			continue
		}
		tokens := termSet(para, false)

		duplicate := false
		for _, p := range parts {
			if jaccard(tokens, p.tokens) >= cfg.DuplicateThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		parts = append(parts, part{
			text:   fmt.Sprintf("%s [%d]", para, i+1),
			tokens: tokens,
		})
	}

	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.text
	}
	return truncateWords(strings.Join(texts, "\n\n"), cfg.MaxAnswerWords)
}

// bestParagraph picks the paragraph of content with the greatest overlap
// with qterms. Paragraphs shorter than minChars are considered only when
// no longer one exists. Ties keep the earliest paragraph.
func bestParagraph(content string, qterms map[string]bool, minChars int) string {
	var all, long []string
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		all = append(all, p)
		if len(p) >= minChars {
			long = append(long, p)
		}
	}
	candidates := long
	if len(candidates) == 0 {
		candidates = all
	}

	best, bestScore := "", -1
	for _, p := range candidates {
		score := 0
		for t := range termSet(p, false) {
			if qterms[t] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

// termSet lowercases and splits text into word tokens.
func termSet(text string, dropStopwords bool) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if dropStopwords && questionStopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// truncateWords cuts text after maxWords words, keeping its line breaks.
func truncateWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord && words == maxWords && strings.TrimSpace(text[i:]) != "" {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace) + TruncationSuffix
			}
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return text
}

// citations builds one citation per evidence item in retrieval order.
func citations(evidence []domain.RetrievedEvidence, withMetadata bool, snippetChars int) []domain.Citation {
	out := make([]domain.Citation, len(evidence))
	for i, ev := range evidence {
		c := domain.Citation{
			Rank:       i + 1,
			DocumentID: ev.Chunk.DocumentID,
			ChunkID:    ev.Chunk.ID,
			Similarity: round3(ev.Similarity),
		}
		if withMetadata {
			c.Title = ev.Title
			c.Section = ev.Chunk.Section
			c.Department = ev.Chunk.Department
			c.DocumentType = ev.DocumentType
			c.Snippet = snippet(ev.Chunk.Content, snippetChars)
		}
		out[i] = c
	}
	return out
}

// snippet returns the first n characters of text, with "..." when cut.
func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
