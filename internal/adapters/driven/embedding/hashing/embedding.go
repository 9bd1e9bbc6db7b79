// Package hashing provides a deterministic, offline embedding service based
// on feature hashing. It needs no network and no model download, which makes
// it the default for local runs and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// Default configuration values.
const (
	DefaultModel      = "fnv-hash-384"
	DefaultDimensions = 384
)

// keep overrides the English stop list: negations change what a policy says.
var keep = map[string]bool{"no": true, "nor": true, "not": true}

// frameWords name who is being asked rather than what; nearly every policy
// passage and question carries one.
var frameWords = map[string]bool{
	"department": true, "departments": true, "dept": true,
	"team": true, "teams": true, "unit": true, "units": true,
	"please": true,
}

// Embedder maps text to a signed bag-of-stems vector using FNV-1a.
// Stop words are dropped, the remaining words are Snowball-stemmed and each
// stem is hashed to one dimension; the top hash bit picks the sign.
// Word order is ignored, so a reordered paraphrase embeds like the original.
// Vectors are L2-normalised.
type Embedder struct {
	model      string
	dimensions int
}

// New creates a hashing embedder with the given dimension.
// A non-positive dimension selects DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	model := DefaultModel
	if dimensions != DefaultDimensions {
		model = fmt.Sprintf("fnv-hash-%d", dimensions)
	}
	return &Embedder{model: model, dimensions: dimensions}
}

// Embed generates a vector embedding for the given text.
func (s *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, s.dimensions)
	for _, term := range Terms(text) {
		s.add(vec, term)
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, s.dimensions)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (s *Embedder) add(vec []float64, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(s.dimensions))
	if sum>>63 == 1 {
		vec[idx]--
		return
	}
	vec[idx]++
}

// EmbedBatch generates embeddings for multiple texts.
func (s *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *Embedder) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *Embedder) ModelName() string {
	return s.model
}

// Ping always succeeds; the embedder is local.
func (s *Embedder) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *Embedder) Close() error {
	return nil
}

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns the stems Embed hashes: tokens minus stop and frame words,
// each reduced by the English Snowball stemmer.
func Terms(text string) []string {
	words := Tokenize(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if frameWords[w] || (english.IsStopWord(w) && !keep[w]) {
			continue
		}
		out = append(out, english.Stem(w, true))
	}
	return out
}
