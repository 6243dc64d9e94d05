// Package validate provides synchronous input validation and the
// cross-field consistency checks that annotate a parsed event.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JacoLabs/eventparse/internal/event"
)

// Input validation errors — the only hard failures in the system; every
// other problem degrades into a partial result.
var (
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrTextTooLarge = errors.New("text exceeds size limit")
	ErrBadTimezone  = errors.New("invalid timezone")
	ErrBadReference = errors.New("invalid reference time")
)

// Input rejects malformed requests before pipeline entry.
func Input(text string, maxBytes int, timezone string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if len(text) > maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTextTooLarge, len(text), maxBytes)
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return fmt.Errorf("%w: %q", ErrBadTimezone, timezone)
		}
	}
	return nil
}

// CrossField checks consistency across resolved fields and repairs what
// it can. It annotates, never blocks: the returned warnings ride along on
// the response. The fields map is adjusted in place for repairs
// (swap-or-drop end, all-day boundary enforcement, echoed location).
func CrossField(fields map[event.Field]event.FieldResult) []event.Warning {
	var warnings []event.Warning

	start, hasStart := fields[event.FieldStart]
	end, hasEnd := fields[event.FieldEnd]

	if hasStart && hasEnd {
		startT, errS := time.Parse(time.RFC3339, start.Value)
		endT, errE := time.Parse(time.RFC3339, end.Value)
		if errS == nil && errE == nil && !endT.After(startT) {
			warnings = append(warnings, event.Warning{
				Code:    event.WarnEndBeforeStart,
				Field:   event.FieldEnd,
				Message: "end is not after start; values swapped",
			})
			if endT.Equal(startT) {
				// Zero-length event: drop the end rather than fabricate one.
				delete(fields, event.FieldEnd)
			} else {
				start.Value, end.Value = end.Value, start.Value
				fields[event.FieldStart] = start
				fields[event.FieldEnd] = end
			}
		}
	}

	// An inferred all-day event is bounded midnight to midnight, never a
	// synthetic default hour.
	if allDay, ok := fields[event.FieldAllDay]; ok && allDay.Value == "true" {
		if hasStart {
			if t, err := time.Parse(time.RFC3339, start.Value); err == nil {
				midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
				start.Value = midnight.Format(time.RFC3339)
				fields[event.FieldStart] = start
				end = fields[event.FieldEnd]
				end.Field = event.FieldEnd
				if end.Value == "" {
					end.Source = start.Source
					end.Confidence = start.Confidence
					end.Span = start.Span
				}
				end.Value = midnight.AddDate(0, 0, 1).Format(time.RFC3339)
				fields[event.FieldEnd] = end
			}
		}
	}

	if title, ok := fields[event.FieldTitle]; ok {
		if loc, ok := fields[event.FieldLocation]; ok {
			if normalizeCompare(loc.Value) == normalizeCompare(title.Value) {
				warnings = append(warnings, event.Warning{
					Code:    event.WarnLocationEchoesTitle,
					Field:   event.FieldLocation,
					Message: "location duplicates the title; location dropped",
				})
				delete(fields, event.FieldLocation)
			}
		}
	}

	return warnings
}

func normalizeCompare(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
