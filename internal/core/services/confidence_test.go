package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/verity/internal/core/domain"
)

func ev(doc string, sim float64) domain.RetrievedEvidence {
	return domain.RetrievedEvidence{Chunk: domain.Chunk{DocumentID: doc}, Similarity: sim}
}

func TestAssess(t *testing.T) {
	cfg := domain.DefaultConfig().Grounding

	tests := []struct {
		name       string
		evidence   []domain.RetrievedEvidence
		confidence float64
		verdict    domain.Verdict
		grounded   bool
	}{
		{"no evidence", nil, 0, domain.VerdictNotSupported, false},
		{"single strong", []domain.RetrievedEvidence{ev("a", 0.9)}, 0.9, domain.VerdictSupported, true},
		{"single moderate", []domain.RetrievedEvidence{ev("a", 0.6)}, 0.6, domain.VerdictPartiallySupported, true},
		{"single weak", []domain.RetrievedEvidence{ev("a", 0.3)}, 0.3, domain.VerdictNotSupported, false},
		{"corroborated by other document", []domain.RetrievedEvidence{ev("a", 0.8), ev("b", 0.6)}, 0.83, domain.VerdictSupported, true},
		{"same document counts half", []domain.RetrievedEvidence{ev("a", 0.8), ev("a", 0.6)}, 0.815, domain.VerdictSupported, true},
		{"mixed repeats", []domain.RetrievedEvidence{ev("a", 0.6), ev("b", 0.6), ev("a", 0.6)}, 0.645, domain.VerdictPartiallySupported, true},
		{"similarity above one is clamped", []domain.RetrievedEvidence{ev("a", 1.2)}, 1, domain.VerdictSupported, true},
		{"negative similarity is clamped", []domain.RetrievedEvidence{ev("a", -0.4)}, 0, domain.VerdictNotSupported, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Assess(tt.evidence, cfg)
			assert.InDelta(t, tt.confidence, a.Confidence, 1e-9)
			assert.Equal(t, tt.verdict, a.Verdict)
			assert.Equal(t, tt.grounded, a.Grounded)
		})
	}
}

func TestAssess_ThresholdBoundaries(t *testing.T) {
	cfg := domain.DefaultConfig().Grounding

	tests := []struct {
		sim     float64
		verdict domain.Verdict
	}{
		{0.75, domain.VerdictSupported},
		{0.749, domain.VerdictPartiallySupported},
		{0.4, domain.VerdictPartiallySupported},
		{0.399, domain.VerdictNotSupported},
	}

	for _, tt := range tests {
		a := Assess([]domain.RetrievedEvidence{ev("a", tt.sim)}, cfg)
		assert.Equal(t, tt.verdict, a.Verdict, "similarity %v", tt.sim)
		assert.Equal(t, tt.sim >= 0.4, a.Grounded, "similarity %v", tt.sim)
	}
}

func TestAssess_MonotonicInEverySimilarity(t *testing.T) {
	cfg := domain.DefaultConfig().Grounding
	base := []domain.RetrievedEvidence{ev("a", 0.55), ev("b", 0.5), ev("a", 0.52)}

	for i := range base {
		prev := -1.0
		for sim := 0.5; sim <= 1.0; sim += 0.05 {
			evs := make([]domain.RetrievedEvidence, len(base))
			copy(evs, base)
			evs[i].Similarity = sim
			got := Assess(evs, cfg).Confidence
			assert.GreaterOrEqual(t, got, prev, "index %d similarity %.2f", i, sim)
			prev = got
		}
	}
}

func TestRelevant(t *testing.T) {
	hits := []domain.RetrievedEvidence{ev("a", 0.9), ev("b", 0.7), ev("c", 0.4), ev("d", 0.6)}

	got := relevant(hits, 0.5, 5)
	assert.Len(t, got, 3)
	assert.Equal(t, "d", got[2].Chunk.DocumentID)

	assert.Len(t, relevant(hits, 0.5, 2), 2)
	assert.Empty(t, relevant(hits, 0.95, 5))
}
