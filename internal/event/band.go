package event

// Band buckets a confidence score for routing. Thresholds come from
// configuration so operators can retune without code changes.
type Band string

// Confidence bands and their tier eligibility: HIGH accepts the pattern
// value as-is, MEDIUM is backup-eligible, LOW is enhancement-eligible.
const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Bands holds the configurable band boundaries. High is the lower bound of
// the HIGH band, Medium the lower bound of MEDIUM; anything below Medium
// is LOW.
type Bands struct {
	High   float64 `koanf:"high"`
	Medium float64 `koanf:"medium"`
}

// DefaultBands returns the documented default thresholds.
func DefaultBands() Bands {
	return Bands{High: 0.8, Medium: 0.6}
}

// Classify maps a confidence score to its band.
func (b Bands) Classify(confidence float64) Band {
	switch {
	case confidence >= b.High:
		return BandHigh
	case confidence >= b.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// Decision is the router's verdict for one field at one point in the
// escalation sequence.
type Decision string

// Routing decisions.
const (
	DecisionAccept              Decision = "accept"
	DecisionEscalateBackup      Decision = "escalate_backup"
	DecisionEscalateEnhancement Decision = "escalate_enhancement"
	DecisionUnresolved          Decision = "unresolved"
)

// TierSet tracks which tiers have already been attempted for a field in
// the current request. Escalation is monotonic: an exhausted tier is never
// re-attempted.
type TierSet struct {
	Pattern     bool
	Backup      bool
	Enhancement bool
}

// Attempted reports whether the given tier has run.
func (t TierSet) Attempted(s Source) bool {
	switch s {
	case SourcePattern:
		return t.Pattern
	case SourceBackup:
		return t.Backup
	case SourceEnhancement:
		return t.Enhancement
	}
	return false
}

// Mark records a tier as attempted.
func (t *TierSet) Mark(s Source) {
	switch s {
	case SourcePattern:
		t.Pattern = true
	case SourceBackup:
		t.Backup = true
	case SourceEnhancement:
		t.Enhancement = true
	}
}
