package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

// ref is a fixed Thursday so relative dates resolve deterministically.
var ref = time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractor(config.Default().Engine)
}

func TestExtract_ExplicitDatetime(t *testing.T) {
	e := newTestExtractor()

	out := e.Extract("Team meeting tomorrow at 2pm in Conference Room A", ref, time.UTC)

	require.Len(t, out[event.FieldStart], 1)
	start := out[event.FieldStart][0]
	assert.Equal(t, "2026-03-13T14:00:00Z", start.Value)
	assert.Equal(t, event.SourcePattern, start.Source)
	assert.Equal(t, event.GrainMinute, start.Grain)
	assert.True(t, start.HasTimezone)
	assert.InDelta(t, 0.9, start.Confidence, 1e-9)

	// Default one-hour duration when the text states none.
	require.Len(t, out[event.FieldEnd], 1)
	assert.Equal(t, "2026-03-13T15:00:00Z", out[event.FieldEnd][0].Value)

	require.Len(t, out[event.FieldTitle], 1)
	title := out[event.FieldTitle][0]
	assert.Equal(t, "Team meeting", title.Value)
	assert.InDelta(t, 0.9, title.Confidence, 1e-9)

	require.Len(t, out[event.FieldLocation], 1)
	assert.Equal(t, "Conference Room A", out[event.FieldLocation][0].Value)

	require.Len(t, out[event.FieldAllDay], 1)
	assert.Equal(t, "false", out[event.FieldAllDay][0].Value)
}

func TestExtract_DateVariants(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name      string
		text      string
		wantStart string
	}{
		{"iso date", "review on 2026-04-01 at 9am", "2026-04-01T09:00:00Z"},
		{"slash date month first", "review on 4/1 at 9am", "2026-04-01T09:00:00Z"},
		{"slash date with year", "review on 4/1/2027 at 9am", "2027-04-01T09:00:00Z"},
		{"named month", "review on April 1st at 9am", "2026-04-01T09:00:00Z"},
		{"day before month", "review on 1st of April at 9am", "2026-04-01T09:00:00Z"},
		{"named month rolls forward", "review on January 5 at 9am", "2027-01-05T09:00:00Z"},
		{"today", "review today at 9pm", "2026-03-12T21:00:00Z"},
		{"day after tomorrow", "review day after tomorrow at 9am", "2026-03-14T09:00:00Z"},
		{"weekday rolls forward", "review friday at 9am", "2026-03-13T09:00:00Z"},
		{"next weekday adds a week", "review next friday at 9am", "2026-03-20T09:00:00Z"},
		{"same weekday goes to next week", "review thursday at 9am", "2026-03-19T09:00:00Z"},
		{"in n days", "review in 3 days at 9am", "2026-03-15T09:00:00Z"},
		{"in n weeks", "review in 2 weeks at 9am", "2026-03-26T09:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Extract(tt.text, ref, time.UTC)
			require.NotEmpty(t, out[event.FieldStart], "no start extracted from %q", tt.text)
			assert.Equal(t, tt.wantStart, out[event.FieldStart][0].Value)
		})
	}
}

func TestExtract_TimeVariants(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name      string
		text      string
		wantStart string
		wantGrain event.Grain
	}{
		{"compact meridiem", "sync tomorrow 2pm", "2026-03-13T14:00:00Z", event.GrainMinute},
		{"spaced meridiem", "sync tomorrow 2 pm", "2026-03-13T14:00:00Z", event.GrainMinute},
		{"minutes", "sync tomorrow 2:30pm", "2026-03-13T14:30:00Z", event.GrainMinute},
		{"dotted minutes", "sync tomorrow 2.30pm", "2026-03-13T14:30:00Z", event.GrainMinute},
		{"24 hour", "sync tomorrow 14:30", "2026-03-13T14:30:00Z", event.GrainMinute},
		{"seconds", "sync tomorrow 14:30:15", "2026-03-13T14:30:15Z", event.GrainSecond},
		{"noon", "lunch tomorrow at noon", "2026-03-13T12:00:00Z", event.GrainMinute},
		{"midnight", "deploy tomorrow at midnight", "2026-03-13T00:00:00Z", event.GrainMinute},
		{"12am", "deploy tomorrow at 12am", "2026-03-13T00:00:00Z", event.GrainMinute},
		{"12pm", "lunch tomorrow at 12pm", "2026-03-13T12:00:00Z", event.GrainMinute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Extract(tt.text, ref, time.UTC)
			require.NotEmpty(t, out[event.FieldStart], "no start extracted from %q", tt.text)
			assert.Equal(t, tt.wantStart, out[event.FieldStart][0].Value)
			assert.Equal(t, tt.wantGrain, out[event.FieldStart][0].Grain)
		})
	}
}

func TestExtract_TimeRange(t *testing.T) {
	e := newTestExtractor()

	// The end meridiem applies to the bare start: 2-4pm is 14:00-16:00.
	out := e.Extract("workshop tomorrow 2-4pm", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldStart])
	require.NotEmpty(t, out[event.FieldEnd])
	assert.Equal(t, "2026-03-13T14:00:00Z", out[event.FieldStart][0].Value)
	assert.Equal(t, "2026-03-13T16:00:00Z", out[event.FieldEnd][0].Value)

	out = e.Extract("workshop tomorrow 11:30am to 1:15pm", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldStart])
	assert.Equal(t, "2026-03-13T11:30:00Z", out[event.FieldStart][0].Value)
	assert.Equal(t, "2026-03-13T13:15:00Z", out[event.FieldEnd][0].Value)
}

func TestExtract_Duration(t *testing.T) {
	e := newTestExtractor()

	out := e.Extract("sync tomorrow at 2pm for 90 minutes", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldEnd])
	assert.Equal(t, "2026-03-13T15:30:00Z", out[event.FieldEnd][0].Value)

	out = e.Extract("sync tomorrow at 2pm for 1.5 hours", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldEnd])
	assert.Equal(t, "2026-03-13T15:30:00Z", out[event.FieldEnd][0].Value)
}

func TestExtract_DateOnlyIsAllDay(t *testing.T) {
	e := newTestExtractor()

	out := e.Extract("COWA tomorrow", ref, time.UTC)

	require.NotEmpty(t, out[event.FieldStart])
	require.NotEmpty(t, out[event.FieldEnd])
	require.NotEmpty(t, out[event.FieldAllDay])

	// Midnight to midnight, never a synthetic default hour.
	assert.Equal(t, "2026-03-13T00:00:00Z", out[event.FieldStart][0].Value)
	assert.Equal(t, "2026-03-14T00:00:00Z", out[event.FieldEnd][0].Value)
	assert.Equal(t, "true", out[event.FieldAllDay][0].Value)
	assert.Equal(t, event.GrainDay, out[event.FieldStart][0].Grain)

	require.NotEmpty(t, out[event.FieldTitle])
	assert.Equal(t, "COWA", out[event.FieldTitle][0].Value)
}

func TestExtract_DatelessTimeRollsForward(t *testing.T) {
	e := newTestExtractor()

	// 9am has already passed at the 10:00 reference, so it anchors to the
	// next day; 9pm has not, so it stays on the reference day.
	out := e.Extract("call at 9am", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldStart])
	assert.Equal(t, "2026-03-13T09:00:00Z", out[event.FieldStart][0].Value)

	out = e.Extract("call at 9pm", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldStart])
	assert.Equal(t, "2026-03-12T21:00:00Z", out[event.FieldStart][0].Value)
}

func TestExtract_Recurrence(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		text string
		want string
	}{
		{"standup every monday at 9:30", "FREQ=WEEKLY;BYDAY=MO"},
		{"standup every weekday at 9:30", "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"},
		{"backup every day at midnight", "FREQ=DAILY"},
		{"review every month", "FREQ=MONTHLY"},
		{"daily huddle at 9am", "FREQ=DAILY"},
		{"biweekly planning at 10am", "FREQ=WEEKLY;INTERVAL=2"},
		{"yearly kickoff in January", "FREQ=YEARLY"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			out := e.Extract(tt.text, ref, time.UTC)
			require.NotEmpty(t, out[event.FieldRecurrence], "no recurrence from %q", tt.text)
			assert.Equal(t, tt.want, out[event.FieldRecurrence][0].Value)
		})
	}
}

func TestExtract_Locations(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"capitalized phrase", "dinner tomorrow at 7pm at Blue Bottle Coffee", "Blue Bottle Coffee"},
		{"room number", "sync tomorrow at 2pm in room 201", "room 201"},
		{"virtual venue", "sync tomorrow at 2pm on zoom", "zoom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Extract(tt.text, ref, time.UTC)
			require.NotEmpty(t, out[event.FieldLocation], "no location from %q", tt.text)
			assert.Equal(t, tt.want, out[event.FieldLocation][0].Value)
		})
	}
}

func TestExtract_HedgedTextScoresLow(t *testing.T) {
	e := newTestExtractor()

	out := e.Extract("maybe meeting sometime next week", ref, time.UTC)

	// "next week" alone is not a resolvable date at this tier.
	assert.Empty(t, out[event.FieldStart])

	require.NotEmpty(t, out[event.FieldTitle])
	title := out[event.FieldTitle][0]
	bands := event.DefaultBands()
	assert.Equal(t, event.BandLow, bands.Classify(title.Confidence),
		"hedged unanchored title should be low confidence, got %v", title.Confidence)
}

func TestExtract_TitleAfterLeadingTemporal(t *testing.T) {
	e := newTestExtractor()

	// Text opens with the temporal phrase; the title comes from the tail.
	out := e.Extract("tomorrow at 2pm dentist appointment", ref, time.UTC)
	require.NotEmpty(t, out[event.FieldTitle])
	assert.Equal(t, "dentist appointment", out[event.FieldTitle][0].Value)
}

func TestExtract_NoMatchesIsEmptyMap(t *testing.T) {
	e := newTestExtractor()

	out := e.Extract("....", ref, time.UTC)
	assert.Empty(t, out[event.FieldStart])
	assert.Empty(t, out[event.FieldTitle])
	assert.Empty(t, out[event.FieldRecurrence])
}

func TestTrimTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Team meeting ", "Team meeting"},
		{"Team meeting on", "Team meeting"},
		{"Lunch with Sam at", "Lunch with Sam"},
		{"Review starts", "Review"},
		{"Standup is at the", "Standup"},
		{", .", ""},
	}
	for _, tt := range tests {
		if got := trimTitle(tt.in); got != tt.want {
			t.Errorf("trimTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
