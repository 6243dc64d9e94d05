// Package router makes the per-field escalation decision: accept the
// current best value, escalate to the backup tier, escalate to
// enhancement, or give up.
package router

import (
	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

// Router decides, per field, which tier to trust next. It is a pure
// function of the current confidence band and the tiers already attempted;
// escalation is monotonic within a request.
type Router struct {
	bands          event.Bands
	essentialBoost float64
}

// New creates a router from engine configuration.
func New(cfg config.EngineConfig) *Router {
	return &Router{
		bands:          cfg.Bands,
		essentialBoost: cfg.EssentialBoost,
	}
}

// Route returns the decision for a field given its current best result and
// the tiers attempted so far. A nil best means no tier has produced a
// value yet.
//
// Essential fields (title, start) clear a higher bar: their effective
// confidence is reduced by the configured boost before band
// classification, so a result an optional field would accept still
// escalates.
func (r *Router) Route(field event.Field, best *event.FieldResult, attempted event.TierSet) event.Decision {
	confidence := 0.0
	if best.Resolved() {
		confidence = best.Confidence
	}

	effective := confidence
	if field.Essential() {
		effective -= r.essentialBoost
	}

	switch r.bands.Classify(effective) {
	case event.BandHigh:
		return event.DecisionAccept

	case event.BandMedium:
		if !attempted.Backup {
			return event.DecisionEscalateBackup
		}
		if field.Essential() && !attempted.Enhancement {
			// A medium result on an essential field is still worth one
			// model call; optional fields settle for what they have.
			return event.DecisionEscalateEnhancement
		}
		if best.Resolved() {
			return event.DecisionAccept
		}
		return event.DecisionUnresolved

	default: // BandLow
		// The backup tier is reserved for medium-band results; a low-band
		// field goes straight to enhancement. Only essential fields
		// trigger the model call; unresolved optional fields ride along
		// once an essential field escalates.
		if field.Essential() && !attempted.Enhancement {
			return event.DecisionEscalateEnhancement
		}
		if best.Resolved() {
			return event.DecisionAccept
		}
		return event.DecisionUnresolved
	}
}

// Band exposes the classification used for a result, for audit records.
func (r *Router) Band(field event.Field, best *event.FieldResult) event.Band {
	confidence := 0.0
	if best.Resolved() {
		confidence = best.Confidence
	}
	if field.Essential() {
		confidence -= r.essentialBoost
	}
	return r.bands.Classify(confidence)
}
