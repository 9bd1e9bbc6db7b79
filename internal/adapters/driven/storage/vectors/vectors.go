// Package vectors holds the embedding codec and similarity ranking shared by
// the vector index adapters.
package vectors

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Encode packs a vector as little-endian IEEE 754 float32 values.
// The length is derived from the BLOB size on decode.
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// Decode unpacks a BLOB produced by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Magnitude returns the Euclidean norm of vec.
func Magnitude(vec []float32) float32 {
	if len(vec) == 0 {
		return 0
	}
	return search.Float32s(vec).Magnitude()
}

// Cosine returns the cosine similarity of a and b. The magnitudes only
// short-circuit zero vectors, which have similarity 0 with everything.
// CosineDistance is the one distance search exports on every GOARCH.
func Cosine(a, b []float32, magA, magB float32) float64 {
	if magA == 0 || magB == 0 || len(a) != len(b) {
		return 0
	}
	sim := 1 - float64(search.Float32s(a).CosineDistance(b))
	if math.IsNaN(sim) {
		return 0
	}
	return math.Max(-1, math.Min(1, sim))
}

// Sort orders evidence by descending similarity. Ties fall back to chunk
// position, then document ID, then chunk ID, so results are deterministic.
func Sort(evidence []domain.RetrievedEvidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		a, b := evidence[i], evidence[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Chunk.Position != b.Chunk.Position {
			return a.Chunk.Position < b.Chunk.Position
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

// Top sorts evidence and truncates it to k entries.
func Top(evidence []domain.RetrievedEvidence, k int) []domain.RetrievedEvidence {
	Sort(evidence)
	if k > 0 && len(evidence) > k {
		evidence = evidence[:k]
	}
	return evidence
}
