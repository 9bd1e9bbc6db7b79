package vectors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func TestEncodeDecode(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, math.MaxFloat32}

	got, err := Decode(Encode(vec))

	require.NoError(t, err)
	assert.Equal(t, vec, got)

	empty, err := Decode(Encode(nil))
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"unnormalised", []float32{3, 4}, []float32{4, 3}, 0.96},
		{"scaled copy", []float32{2, 4, 6}, []float32{1, 2, 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b, Magnitude(tt.a), Magnitude(tt.b))
			assert.InDelta(t, tt.want, got, 1e-5)
		})
	}
}

func TestCosine_EmbeddingWidth(t *testing.T) {
	a := make([]float32, 384)
	b := make([]float32, 384)
	var dot, na, nb float64
	for i := range a {
		a[i] = float32(math.Sin(float64(i)))
		b[i] = float32(math.Cos(float64(i) / 3))
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	want := dot / (math.Sqrt(na) * math.Sqrt(nb))

	assert.InDelta(t, want, Cosine(a, b, Magnitude(a), Magnitude(b)), 1e-4)
	assert.InDelta(t, 1, Cosine(a, a, Magnitude(a), Magnitude(a)), 1e-4)
}

func TestTop(t *testing.T) {
	ev := func(id, doc string, pos int, sim float64) domain.RetrievedEvidence {
		return domain.RetrievedEvidence{
			Chunk:      domain.Chunk{ID: id, DocumentID: doc, Position: pos},
			Similarity: sim,
		}
	}
	evidence := []domain.RetrievedEvidence{
		ev("c", "b", 1, 0.5),
		ev("a", "a", 2, 0.9),
		ev("d", "a", 1, 0.5),
		ev("b", "b", 0, 0.5),
		ev("e", "a", 0, 0.5),
	}

	got := Top(evidence, 4)

	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.Chunk.ID
	}
	assert.Equal(t, []string{"a", "e", "b", "d"}, ids)
}
