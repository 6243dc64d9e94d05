// Package pattern implements the deterministic first extraction tier:
// regex-based recognition of explicit and relative dates, clock times,
// ranges, durations, recurrence rules, and title/location heuristics.
//
// Patterns are written to tolerate common typographical variants directly
// (missing space before a meridiem marker, dotted separators), so spans
// always index the original text.
package pattern

import "regexp"

// Temporal patterns. Matched case-insensitively against the raw input.
var (
	// Explicit dates.
	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	reMonthDate = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	reDayMonth  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)(?:,?\s+(\d{4}))?\b`)

	// Relative dates resolved against the reference time.
	reRelDay  = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|day after tomorrow)\b`)
	reWeekday = regexp.MustCompile(`(?i)\b(?:(next|this)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thurs|fri|sat|sun)\b`)
	reInDays  = regexp.MustCompile(`(?i)\bin\s+(\d{1,3})\s+(day|week)s?\b`)

	// Clock times. The meridiem form accepts "2pm", "2 pm", "2:30pm",
	// "2.30 pm"; the 24h form requires a colon to avoid matching bare
	// integers.
	reMeridiemTime = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[:.](\d{2})(?::(\d{2}))?)?\s*([ap])\.?m\.?\b`)
	re24hTime      = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)(?::([0-5]\d))?\b`)
	reNamedTime    = regexp.MustCompile(`(?i)\b(noon|midday|midnight)\b`)

	// Time ranges: "2-4pm", "2pm to 4pm", "2:30pm until 4pm". The end
	// meridiem is required so bare numeric ranges don't match.
	reTimeRange = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[:.](\d{2}))?\s*([ap]\.?m\.?)?\s*(?:-|–|—|to|until|till)\s*(\d{1,2})(?:[:.](\d{2}))?\s*([ap]\.?m\.?)\b`)

	// Durations: "for 2 hours", "90 min", "for 1.5 hrs".
	reDuration = regexp.MustCompile(`(?i)\b(?:for\s+)?(\d{1,3}(?:\.\d)?)\s*(hours?|hrs?|minutes?|mins?)\b`)

	// Recurrence.
	reEveryWeekday = regexp.MustCompile(`(?i)\bevery\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday|weekday|day|week|month|morning)\b`)
	reFreqWord     = regexp.MustCompile(`(?i)\b(daily|weekly|biweekly|monthly|annually|yearly)\b`)

	// Explicit timezone markers near a time.
	reZoneToken = regexp.MustCompile(`(?i)\b(utc|gmt|est|edt|cst|cdt|mst|mdt|pst|pdt|[a-z]+/[a-z_]+)\b|[+-]\d{2}:?\d{2}\b`)
)

// Location patterns.
var (
	// "in Conference Room A", "at Blue Bottle Coffee": preposition followed
	// by a capitalized phrase.
	reLocPhrase = regexp.MustCompile(`\b(?:in|at)\s+((?:[A-Z][A-Za-z0-9'&.-]*)(?:\s+(?:[A-Z0-9][A-Za-z0-9'&.-]*|of|the|de))*)`)

	// Room designators: "room 201", "rm 4B", "conference room A".
	reRoom = regexp.MustCompile(`(?i)\b((?:conference\s+)?(?:room|rm)\.?\s*#?[A-Za-z0-9-]+)\b`)

	// Virtual meeting venues.
	reVirtual = regexp.MustCompile(`(?i)\b(zoom|google meet|teams|webex|skype)\b`)
)

// Hedge words depress title confidence: text dominated by them rarely
// describes a committed event.
var reHedge = regexp.MustCompile(`(?i)\b(maybe|perhaps|sometime|possibly|might|tentatively|thinking about)\b`)

var monthsByPrefix = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var weekdaysByPrefix = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}
