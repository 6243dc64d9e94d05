package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

func newTestArbiter() *Arbiter {
	return New(config.Default().Engine)
}

func TestChooseBest_Empty(t *testing.T) {
	best, warnings := newTestArbiter().ChooseBest(nil)
	assert.False(t, best.Resolved())
	assert.Empty(t, warnings)
}

func TestChooseBest_HighestConfidenceWins(t *testing.T) {
	a := newTestArbiter()

	best, _ := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldTitle, Value: "standup", Source: event.SourcePattern, Confidence: 0.7, Span: event.Span{Start: 0, End: 40}},
		{Field: event.FieldTitle, Value: "weekly standup", Source: event.SourceBackup, Confidence: 0.8, Span: event.Span{Start: 0, End: 40}},
	})

	assert.Equal(t, "weekly standup", best.Value)
	assert.Equal(t, event.SourceBackup, best.Source)
	assert.Contains(t, best.Alternatives, "standup")
}

func TestChooseBest_ShortSpanBonus(t *testing.T) {
	a := newTestArbiter()

	// The tighter span wins despite slightly lower raw confidence.
	best, _ := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldLocation, Value: "the office downtown near the station", Confidence: 0.75, Span: event.Span{Start: 0, End: 36}},
		{Field: event.FieldLocation, Value: "office", Confidence: 0.7, Span: event.Span{Start: 0, End: 6}},
	})

	assert.Equal(t, "office", best.Value)
}

func TestChooseBest_SourcePreferenceBreaksTies(t *testing.T) {
	a := newTestArbiter()

	best, _ := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldTitle, Value: "from enhancement", Source: event.SourceEnhancement, Confidence: 0.7, Span: event.Span{Start: 0, End: 20}},
		{Field: event.FieldTitle, Value: "from pattern", Source: event.SourcePattern, Confidence: 0.7, Span: event.Span{Start: 0, End: 20}},
	})

	assert.Equal(t, "from pattern", best.Value)
}

func TestChooseBest_ZoneCompleteRunnerUpPreferred(t *testing.T) {
	a := newTestArbiter()

	// The zone-less candidate scores highest, but a zone-complete
	// runner-up exists and takes its place.
	best, warnings := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldStart, Value: "2026-03-13T14:00:00", Confidence: 0.9, Grain: event.GrainMinute, HasTimezone: false, Span: event.Span{Start: 0, End: 30}},
		{Field: event.FieldStart, Value: "2026-03-13T14:00:00Z", Confidence: 0.8, Grain: event.GrainMinute, HasTimezone: true, Span: event.Span{Start: 0, End: 30}},
	})

	assert.Equal(t, "2026-03-13T14:00:00Z", best.Value)
	assert.Empty(t, warnings)
}

func TestChooseBest_ZonelessDatetimeDowngraded(t *testing.T) {
	a := newTestArbiter()

	best, warnings := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldStart, Value: "2026-03-13T14:00:00", Confidence: 0.9, Grain: event.GrainMinute, HasTimezone: false, Span: event.Span{Start: 0, End: 30}},
	})

	assert.InDelta(t, 0.8, best.Confidence, 1e-9)
	require.Len(t, warnings, 1)
	assert.Equal(t, event.WarnMissingTimezone, warnings[0].Code)
	assert.Equal(t, event.FieldStart, warnings[0].Field)
}

func TestChooseBest_DayGrainSkipsTimezoneCheck(t *testing.T) {
	a := newTestArbiter()

	// An all-day date has no clock time to misread across zones.
	best, warnings := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldStart, Value: "2026-03-13T00:00:00Z", Confidence: 0.8, Grain: event.GrainDay, HasTimezone: false, Span: event.Span{Start: 0, End: 8}},
	})

	assert.InDelta(t, 0.8, best.Confidence, 1e-9)
	assert.Empty(t, warnings)
}

func TestChooseBest_NonTemporalFieldNeverWarns(t *testing.T) {
	a := newTestArbiter()

	_, warnings := a.ChooseBest([]event.FieldResult{
		{Field: event.FieldTitle, Value: "standup", Confidence: 0.9, Span: event.Span{Start: 0, End: 7}},
	})
	assert.Empty(t, warnings)
}
