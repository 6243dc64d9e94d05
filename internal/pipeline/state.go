package pipeline

import (
	"github.com/JacoLabs/eventparse/internal/arbiter"
	"github.com/JacoLabs/eventparse/internal/event"
	"github.com/JacoLabs/eventparse/internal/validate"
)

// requestState accumulates per-field candidates and arbitration results as
// a request moves through the tiers. It is confined to one request and
// never shared across goroutines except for the disjoint per-field writes
// inside runBackup.
type requestState struct {
	candidates map[event.Field][]event.FieldResult
	best       map[event.Field]*event.FieldResult
	attempted  map[event.Field]*event.TierSet
	// fieldWarnings holds the warnings from the most recent arbitration
	// of each field. Re-arbitration after an escalation replaces the
	// previous set so a warning is never reported twice.
	fieldWarnings map[event.Field][]event.Warning
}

func newRequestState(requested []event.Field) *requestState {
	s := &requestState{
		candidates:    make(map[event.Field][]event.FieldResult, len(requested)),
		best:          make(map[event.Field]*event.FieldResult, len(requested)),
		attempted:     make(map[event.Field]*event.TierSet, len(requested)),
		fieldWarnings: make(map[event.Field][]event.Warning, len(requested)),
	}
	for _, f := range requested {
		s.best[f] = &event.FieldResult{Field: f}
		s.attempted[f] = &event.TierSet{}
	}
	return s
}

func (s *requestState) addCandidates(f event.Field, results []event.FieldResult) {
	s.candidates[f] = append(s.candidates[f], results...)
}

// arbitrate re-runs candidate selection for one field over every candidate
// gathered so far.
func (s *requestState) arbitrate(a *arbiter.Arbiter, f event.Field) {
	if len(s.candidates[f]) == 0 {
		return
	}
	best, warnings := a.ChooseBest(s.candidates[f])
	s.best[f] = &best
	s.fieldWarnings[f] = warnings
}

// aggregate assembles the final event from the routed field results.
func (p *Pipeline) aggregate(requested []event.Field, state *requestState, path []string, warnings []event.Warning) *event.ParsedEvent {
	fields := make(map[event.Field]event.FieldResult, len(requested))
	for _, f := range requested {
		if best := state.best[f]; best.Resolved() {
			fields[f] = *best
		}
		warnings = append(warnings, state.fieldWarnings[f]...)
	}

	warnings = append(warnings, validate.CrossField(fields)...)

	var suggestions []string
	if !hasEventSignal(fields, requested) {
		warnings = append(warnings, event.Warning{
			Code:    event.WarnNoEventDetected,
			Message: "no event signal found in the text",
		})
		suggestions = append(suggestions,
			"include an explicit date or time, such as \"tomorrow at 2pm\"",
			"lead with a short event title",
		)
	}

	sortWarnings(warnings)

	result := &event.ParsedEvent{
		Fields:            fields,
		OverallConfidence: event.ComputeOverallConfidence(fields, requested),
		ProcessingPath:    path,
		Warnings:          warnings,
		Suggestions:       suggestions,
	}
	result.NeedsConfirmation = p.needsConfirmation(fields, requested, warnings)
	return result
}

// hasEventSignal reports whether the extraction found anything that looks
// like an actual event: a title or a start time.
func hasEventSignal(fields map[event.Field]event.FieldResult, requested []event.Field) bool {
	essentialRequested := false
	for _, f := range requested {
		if !f.Essential() {
			continue
		}
		essentialRequested = true
		if _, ok := fields[f]; ok {
			return true
		}
	}
	// A subset request for only optional fields cannot signal absence.
	return !essentialRequested
}

// needsConfirmation decides whether the caller should show the result to a
// human before creating the event. An essential field that is missing or
// below the high band triggers it, as do structural warnings; advisory
// warnings such as a missing timezone do not.
func (p *Pipeline) needsConfirmation(fields map[event.Field]event.FieldResult, requested []event.Field, warnings []event.Warning) bool {
	for _, f := range requested {
		if !f.Essential() {
			continue
		}
		r, ok := fields[f]
		if !ok || p.cfg.Engine.Bands.Classify(r.Confidence) != event.BandHigh {
			return true
		}
	}
	for _, w := range warnings {
		switch w.Code {
		case event.WarnEndBeforeStart, event.WarnLocationEchoesTitle, event.WarnNoEventDetected, event.WarnDeadlineExceeded:
			return true
		}
	}
	return false
}
