package enhance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JacoLabs/eventparse/internal/event"
)

// fieldPayload is the fixed per-field output schema the model must
// produce: a value in the field's grammar, the verbatim snippet of input
// text that supports it, and the model's own confidence. A null payload
// means the model could not resolve the field.
type fieldPayload struct {
	Value      string  `json:"value"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// enhanceResponse is the top-level schema.
type enhanceResponse struct {
	Fields map[string]*fieldPayload `json:"fields"`
}

const maxStringValueLen = 256

var reRecurrenceRule = regexp.MustCompile(`^FREQ=(DAILY|WEEKLY|MONTHLY|YEARLY)(;[A-Z]+=[A-Z0-9,]+)*$`)

// decodeResponse parses raw model output into the response schema.
// Markdown fences around the JSON are tolerated; anything else is a
// schema violation.
func decodeResponse(raw string) (*enhanceResponse, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var decoded enhanceResponse
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, fmt.Errorf("output is not schema-conforming JSON: %w", err)
	}
	return &decoded, nil
}

// validateValue enforces the per-field value grammar.
func validateValue(field event.Field, value string) error {
	switch field {
	case event.FieldStart, event.FieldEnd:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("datetime not RFC3339: %w", err)
		}
	case event.FieldRecurrence:
		if !reRecurrenceRule.MatchString(value) {
			return fmt.Errorf("recurrence %q not a recognized rule", value)
		}
	case event.FieldAllDay:
		if value != "true" && value != "false" {
			return fmt.Errorf("all_day must be true or false, got %q", value)
		}
	default:
		if len(value) == 0 || len(value) > maxStringValueLen {
			return fmt.Errorf("string value length %d out of bounds", len(value))
		}
	}
	return nil
}

// normalizeForMatch lowercases and collapses whitespace so typographical
// variance does not defeat the substring check.
func normalizeForMatch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// groundSpan locates the supporting snippet in the original text and
// returns its span. The second return is false when the snippet cannot be
// traced to the input — the hallucination-guard rejection case.
func groundSpan(original, snippet string) (event.Span, bool) {
	if snippet == "" {
		return event.Span{}, false
	}
	if idx := strings.Index(strings.ToLower(original), strings.ToLower(snippet)); idx >= 0 {
		return event.Span{Start: idx, End: idx + len(snippet)}, true
	}
	// Whitespace-normalized fallback: accept the snippet if it appears
	// once typography is ignored, but without a precise span.
	if strings.Contains(normalizeForMatch(original), normalizeForMatch(snippet)) {
		return event.Span{}, true
	}
	return event.Span{}, false
}

// grounded reports whether a value itself is traceable to the input.
// Datetime, recurrence, and boolean values are derived forms, so only
// their snippets are checked; free-text values must appear in the text.
func grounded(field event.Field, value, original string) bool {
	switch field {
	case event.FieldStart, event.FieldEnd, event.FieldRecurrence, event.FieldAllDay:
		return true
	default:
		return strings.Contains(normalizeForMatch(original), normalizeForMatch(value))
	}
}
