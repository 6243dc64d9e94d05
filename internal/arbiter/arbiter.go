// Package arbiter reconciles competing candidate values for a field into
// a single best result.
package arbiter

import (
	"fmt"
	"sort"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

// Arbiter scores and selects among candidates produced by the extraction
// tiers.
type Arbiter struct {
	cfg config.EngineConfig
}

// New creates an arbiter with the given scoring weights.
func New(cfg config.EngineConfig) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// ChooseBest selects the winning candidate for one field.
//
// Scoring: confidence, plus a bonus for short spans (tight spans rarely
// capture surrounding prose), plus a bonus for timezone-bearing datetime
// values, with a configurable source-preference order breaking ties.
//
// After selection, datetime candidates lacking timezone information are a
// recoverable defect: the arbiter downgrades their confidence by a fixed
// penalty, attaches a warning, and prefers the next zone-complete
// candidate when one scores close enough; otherwise the top candidate is
// accepted regardless.
func (a *Arbiter) ChooseBest(candidates []event.FieldResult) (event.FieldResult, []event.Warning) {
	if len(candidates) == 0 {
		return event.FieldResult{}, nil
	}
	if len(candidates) == 1 {
		return a.finalize(candidates[0])
	}

	ranked := make([]event.FieldResult, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := a.score(ranked[i]), a.score(ranked[j])
		if si != sj {
			return si > sj
		}
		return a.sourceRank(ranked[i].Source) < a.sourceRank(ranked[j].Source)
	})

	top := ranked[0]
	if top.Field.Temporal() && !top.HasTimezone {
		// Recoverable defect: fall back through zone-complete runners-up
		// before settling for the top candidate.
		for _, next := range ranked[1:] {
			if next.HasTimezone && next.Field.Temporal() {
				top = next
				break
			}
		}
	}

	// Losing values survive as alternatives for the audit trail.
	for _, r := range ranked {
		if r.Value != top.Value && r.Value != "" {
			top.Alternatives = appendUnique(top.Alternatives, r.Value)
		}
	}

	return a.finalize(top)
}

// finalize applies the timezone-completeness downgrade to the selected
// candidate.
func (a *Arbiter) finalize(r event.FieldResult) (event.FieldResult, []event.Warning) {
	if !r.Field.Temporal() || r.HasTimezone || r.Grain == event.GrainDay || r.Grain == event.GrainNone {
		return r, nil
	}
	r.Confidence -= a.cfg.TimezonePenalty
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	return r, []event.Warning{{
		Code:    event.WarnMissingTimezone,
		Field:   r.Field,
		Message: fmt.Sprintf("%s carries no explicit timezone; request timezone assumed", r.Field),
	}}
}

// score computes the comparable rank of one candidate.
func (a *Arbiter) score(r event.FieldResult) float64 {
	s := r.Confidence
	if r.Span.Len() > 0 && r.Span.Len() < a.cfg.ShortSpanChars {
		s += a.cfg.ShortSpanBonus
	}
	if r.Field.Temporal() && r.HasTimezone {
		s += a.cfg.TimezoneBonus
	}
	return s
}

// sourceRank returns the tiebreak position of a source; lower wins.
func (a *Arbiter) sourceRank(s event.Source) int {
	for i, pref := range a.cfg.SourcePreference {
		if pref == s {
			return i
		}
	}
	return len(a.cfg.SourcePreference)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
