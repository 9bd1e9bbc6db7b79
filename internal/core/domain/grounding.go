package domain

// Verdict is the categorical judgement of how well evidence supports a claim.
type Verdict string

// Verdicts, strongest first.
const (
	VerdictSupported          Verdict = "SUPPORTED"
	VerdictPartiallySupported Verdict = "PARTIALLY_SUPPORTED"
	VerdictNotSupported       Verdict = "NOT_SUPPORTED"
)

// IsValid returns true if the verdict is recognised.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictSupported, VerdictPartiallySupported, VerdictNotSupported:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (v Verdict) String() string {
	return string(v)
}

// Classify maps a confidence to a verdict using the grounding thresholds.
func (g GroundingConfig) Classify(confidence float64) Verdict {
	switch {
	case confidence >= g.SupportedThreshold:
		return VerdictSupported
	case confidence >= g.PartialThreshold:
		return VerdictPartiallySupported
	default:
		return VerdictNotSupported
	}
}

// GroundingVerdict is the result of checking a statement against the corpus.
type GroundingVerdict struct {
	Statement          string     `json:"statement"`
	Collection         string     `json:"collection"`
	Verdict            Verdict    `json:"verdict"`
	Confidence         float64    `json:"confidence"`
	SupportingEvidence []Citation `json:"supporting_evidence"`
	Error              string     `json:"error,omitempty"`
}
