package services

import (
	"math"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Assessment is the scored judgement of a set of evidence.
type Assessment struct {
	// Confidence is in [0, 1], rounded to three decimals.
	Confidence float64

	// Verdict classifies Confidence against the grounding thresholds.
	Verdict domain.Verdict

	// Grounded is true when evidence exists and Confidence reaches the
	// partial threshold.
	Grounded bool
}

// Assess scores evidence that already passed the relevance floor, in
// retrieval order. The top chunk sets the base score; the others raise it
// towards 1 in proportion to their similarity, at half weight when they
// repeat a document already seen.
func Assess(evidence []domain.RetrievedEvidence, cfg domain.GroundingConfig) Assessment {
	if len(evidence) == 0 {
		return Assessment{Verdict: domain.VerdictNotSupported}
	}

	s1 := clamp01(evidence[0].Similarity)

	var corroboration float64
	if len(evidence) > 1 {
		seen := map[string]bool{evidence[0].Chunk.DocumentID: true}
		var sum float64
		for _, ev := range evidence[1:] {
			w := 1.0
			if seen[ev.Chunk.DocumentID] {
				w = 0.5
			}
			seen[ev.Chunk.DocumentID] = true
			sum += clamp01(ev.Similarity) * w
		}
		corroboration = sum / float64(len(evidence)-1)
	}

	conf := s1 + (1-s1)*cfg.CorroborationWeight*corroboration
	conf = round3(clamp01(conf))

	return Assessment{
		Confidence: conf,
		Verdict:    cfg.Classify(conf),
		Grounded:   conf >= cfg.PartialThreshold,
	}
}

// relevant keeps evidence at or above floor, at most topK of it.
func relevant(evidence []domain.RetrievedEvidence, floor float64, topK int) []domain.RetrievedEvidence {
	out := make([]domain.RetrievedEvidence, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Similarity < floor {
			continue
		}
		out = append(out, ev)
		if len(out) == topK {
			break
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
