package enhance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacoLabs/eventparse/internal/event"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain json", `{"fields": {"title": {"value": "x", "text": "x", "confidence": 0.7}}}`, false},
		{"fenced json", "```json\n{\"fields\": {}}\n```", false},
		{"bare fence", "```\n{\"fields\": {}}\n```", false},
		{"prose", "the title is x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeResponse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name    string
		field   event.Field
		value   string
		wantErr bool
	}{
		{"valid datetime", event.FieldStart, "2026-03-13T14:00:00Z", false},
		{"datetime with offset", event.FieldEnd, "2026-03-13T14:00:00-05:00", false},
		{"prose datetime", event.FieldStart, "tomorrow at 2pm", true},
		{"valid rule", event.FieldRecurrence, "FREQ=WEEKLY;BYDAY=MO", false},
		{"valid daily rule", event.FieldRecurrence, "FREQ=DAILY", false},
		{"prose recurrence", event.FieldRecurrence, "every monday", true},
		{"all day true", event.FieldAllDay, "true", false},
		{"all day yes", event.FieldAllDay, "yes", true},
		{"plain string", event.FieldTitle, "standup", false},
		{"empty string", event.FieldTitle, "", true},
		{"oversized string", event.FieldDescription, string(make([]byte, 300)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateValue(tt.field, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGroundSpan(t *testing.T) {
	original := "Team meeting tomorrow at 2pm"

	span, ok := groundSpan(original, "tomorrow at 2pm")
	require.True(t, ok)
	assert.Equal(t, "tomorrow at 2pm", original[span.Start:span.End])

	// Case differences don't defeat the check.
	_, ok = groundSpan(original, "TEAM MEETING")
	assert.True(t, ok)

	// Whitespace variance is accepted but yields no precise span.
	span, ok = groundSpan(original, "tomorrow  at  2pm")
	assert.True(t, ok)
	assert.Equal(t, event.Span{}, span)

	_, ok = groundSpan(original, "next friday")
	assert.False(t, ok)

	_, ok = groundSpan(original, "")
	assert.False(t, ok)
}

func TestGrounded(t *testing.T) {
	original := "Team meeting tomorrow at 2pm"

	// Derived values are vouched for by their snippet, not their form.
	assert.True(t, grounded(event.FieldStart, "2026-03-13T14:00:00Z", original))
	assert.True(t, grounded(event.FieldRecurrence, "FREQ=DAILY", original))

	// Free text must literally appear.
	assert.True(t, grounded(event.FieldTitle, "team meeting", original))
	assert.False(t, grounded(event.FieldLocation, "Grand Ballroom", original))
}
