// Package event defines the domain model shared by all extraction tiers:
// fields, per-field results with provenance, confidence bands, routing
// decisions, and the aggregated parsed event.
package event

import (
	"time"
)

// Field identifies one structured attribute of a calendar event.
type Field string

// Calendar event fields.
const (
	FieldTitle       Field = "title"
	FieldStart       Field = "start_datetime"
	FieldEnd         Field = "end_datetime"
	FieldLocation    Field = "location"
	FieldDescription Field = "description"
	FieldRecurrence  Field = "recurrence"
	FieldAllDay      Field = "all_day"
)

// AllFields returns every extractable field in canonical order.
func AllFields() []Field {
	return []Field{
		FieldTitle,
		FieldStart,
		FieldEnd,
		FieldLocation,
		FieldDescription,
		FieldRecurrence,
		FieldAllDay,
	}
}

// Essential reports whether failing to resolve the field should push the
// response into needs-confirmation territory. Essential fields are also
// escalated more aggressively by the router.
func (f Field) Essential() bool {
	return f == FieldTitle || f == FieldStart
}

// Temporal reports whether the field carries a datetime value and is
// therefore subject to timezone-completeness checks.
func (f Field) Temporal() bool {
	return f == FieldStart || f == FieldEnd
}

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	for _, known := range AllFields() {
		if f == known {
			return true
		}
	}
	return false
}

// Source identifies the extraction tier that produced a value.
type Source string

// Extraction tiers in escalation order.
const (
	SourcePattern     Source = "pattern"
	SourceBackup      Source = "backup"
	SourceEnhancement Source = "enhancement"
)

// Span is a character offset range into the original input text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one offset.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Grain is the time precision of a temporal match. Finer grains earn a
// confidence bonus in the pattern tier.
type Grain string

// Temporal grains, coarsest first.
const (
	GrainNone   Grain = ""
	GrainDay    Grain = "day"
	GrainMinute Grain = "minute"
	GrainSecond Grain = "second"
)

// FieldResult is one candidate value for a field, produced by a single
// tier. Results are immutable once produced; reconciliation happens by
// selecting among them, never by mutating them.
type FieldResult struct {
	Field        Field         `json:"field"`
	Value        string        `json:"value"`
	Source       Source        `json:"source"`
	Confidence   float64       `json:"confidence"`
	Span         Span          `json:"span"`
	Grain        Grain         `json:"grain,omitempty"`
	HasTimezone  bool          `json:"has_timezone,omitempty"`
	Alternatives []string      `json:"alternatives,omitempty"`
	Latency      time.Duration `json:"latency_ns"`
}

// Resolved reports whether the result carries a usable value.
func (r *FieldResult) Resolved() bool {
	return r != nil && r.Value != "" && r.Confidence > 0
}

// Warning annotates a parsed event without blocking it.
type Warning struct {
	Code    string `json:"code"`
	Field   Field  `json:"field,omitempty"`
	Message string `json:"message"`
}

// Warning codes attached by the arbiter, validator, and enhancement guard.
const (
	WarnMissingTimezone     = "missing_timezone"
	WarnEndBeforeStart      = "end_before_start"
	WarnLocationEchoesTitle = "location_echoes_title"
	WarnConstraintViolation = "constraint_violation"
	WarnHallucinated        = "hallucinated_value"
	WarnDeadlineExceeded    = "deadline_exceeded"
	WarnNoEventDetected     = "no_event_detected"
)

// ParsedEvent is the aggregate result of one extraction request.
type ParsedEvent struct {
	Fields            map[Field]FieldResult `json:"fields"`
	OverallConfidence float64               `json:"overall_confidence"`
	ProcessingPath    []string              `json:"processing_path"`
	Warnings          []Warning             `json:"warnings,omitempty"`
	NeedsConfirmation bool                  `json:"needs_confirmation"`
	Suggestions       []string              `json:"suggestions,omitempty"`
}

// FieldConfidenceWeights favor title and datetime fields over the rest when
// computing overall confidence.
var fieldConfidenceWeights = map[Field]float64{
	FieldTitle:       0.30,
	FieldStart:       0.30,
	FieldEnd:         0.15,
	FieldLocation:    0.10,
	FieldDescription: 0.05,
	FieldRecurrence:  0.05,
	FieldAllDay:      0.05,
}

// ComputeOverallConfidence returns the weighted confidence across the
// requested fields. Unresolved fields contribute zero. The result is always
// in [0,1].
func ComputeOverallConfidence(fields map[Field]FieldResult, requested []Field) float64 {
	var sum, weight float64
	for _, f := range requested {
		w := fieldConfidenceWeights[f]
		if w == 0 {
			continue
		}
		weight += w
		if r, ok := fields[f]; ok {
			sum += w * r.Confidence
		}
	}
	if weight == 0 {
		return 0
	}
	c := sum / weight
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
