package pattern

import (
	"strconv"
	"strings"
	"time"

	"github.com/JacoLabs/eventparse/internal/event"
)

// dateMatch is a resolved calendar date found in the text.
type dateMatch struct {
	span     event.Span
	year     int
	month    time.Month
	day      int
	explicit bool // fully explicit (ISO, slash-with-year, named month + year)
}

// timeMatch is a resolved clock time found in the text.
type timeMatch struct {
	span    event.Span
	hour    int
	minute  int
	second  int
	grain   event.Grain
	hasZone bool
}

// rangeMatch is a start/end clock-time pair found in the text.
type rangeMatch struct {
	span       event.Span
	start, end timeMatch
}

// durationMatch is an explicit duration found in the text.
type durationMatch struct {
	span event.Span
	d    time.Duration
}

// findDates locates and resolves every date mention against the reference
// time. Relative mentions ("tomorrow", "next friday") resolve to concrete
// dates; explicit forms keep their stated values.
func findDates(text string, ref time.Time, loc *time.Location) []dateMatch {
	ref = ref.In(loc)
	var out []dateMatch

	for _, m := range reISODate.FindAllStringSubmatchIndex(text, -1) {
		y := atoi(text[m[2]:m[3]])
		mo := atoi(text[m[4]:m[5]])
		d := atoi(text[m[6]:m[7]])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			continue
		}
		out = append(out, dateMatch{
			span: event.Span{Start: m[0], End: m[1]},
			year: y, month: time.Month(mo), day: d,
			explicit: true,
		})
	}

	for _, m := range reMonthDate.FindAllStringSubmatchIndex(text, -1) {
		mo, ok := monthsByPrefix[strings.ToLower(text[m[2]:m[3]])[:3]]
		if !ok {
			continue
		}
		d := atoi(text[m[4]:m[5]])
		if d < 1 || d > 31 {
			continue
		}
		dm := dateMatch{
			span:  event.Span{Start: m[0], End: m[1]},
			month: time.Month(mo), day: d,
		}
		if m[6] >= 0 {
			dm.year = atoi(text[m[6]:m[7]])
			dm.explicit = true
		} else {
			dm.year = forwardYear(ref, time.Month(mo), d)
		}
		out = append(out, dm)
	}

	for _, m := range reDayMonth.FindAllStringSubmatchIndex(text, -1) {
		d := atoi(text[m[2]:m[3]])
		mo, ok := monthsByPrefix[strings.ToLower(text[m[4]:m[5]])[:3]]
		if !ok || d < 1 || d > 31 {
			continue
		}
		dm := dateMatch{
			span:  event.Span{Start: m[0], End: m[1]},
			month: time.Month(mo), day: d,
		}
		if m[6] >= 0 {
			dm.year = atoi(text[m[6]:m[7]])
			dm.explicit = true
		} else {
			dm.year = forwardYear(ref, time.Month(mo), d)
		}
		out = append(out, dm)
	}

	for _, m := range reSlashDate.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(event.Span{Start: m[0], End: m[1]}, out) {
			continue
		}
		// Primary locale convention: month/day(/year).
		mo := atoi(text[m[2]:m[3]])
		d := atoi(text[m[4]:m[5]])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			continue
		}
		dm := dateMatch{
			span:  event.Span{Start: m[0], End: m[1]},
			month: time.Month(mo), day: d,
		}
		if m[6] >= 0 {
			y := atoi(text[m[6]:m[7]])
			if y < 100 {
				y += 2000
			}
			dm.year = y
			dm.explicit = true
		} else {
			dm.year = forwardYear(ref, time.Month(mo), d)
		}
		out = append(out, dm)
	}

	for _, m := range reRelDay.FindAllStringSubmatchIndex(text, -1) {
		var offset int
		switch strings.ToLower(text[m[2]:m[3]]) {
		case "today", "tonight":
			offset = 0
		case "tomorrow":
			offset = 1
		case "day after tomorrow":
			offset = 2
		}
		day := ref.AddDate(0, 0, offset)
		out = append(out, dateMatch{
			span: event.Span{Start: m[0], End: m[1]},
			year: day.Year(), month: day.Month(), day: day.Day(),
		})
	}

	for _, m := range reWeekday.FindAllStringSubmatchIndex(text, -1) {
		name := strings.ToLower(text[m[4]:m[5]])
		target, ok := weekdaysByPrefix[name[:3]]
		if !ok {
			continue
		}
		days := (target - int(ref.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		if m[2] >= 0 && strings.EqualFold(text[m[2]:m[3]], "next") && days < 7 {
			days += 7
		}
		day := ref.AddDate(0, 0, days)
		out = append(out, dateMatch{
			span: event.Span{Start: m[0], End: m[1]},
			year: day.Year(), month: day.Month(), day: day.Day(),
		})
	}

	for _, m := range reInDays.FindAllStringSubmatchIndex(text, -1) {
		n := atoi(text[m[2]:m[3]])
		if strings.HasPrefix(strings.ToLower(text[m[4]:m[5]]), "week") {
			n *= 7
		}
		day := ref.AddDate(0, 0, n)
		out = append(out, dateMatch{
			span: event.Span{Start: m[0], End: m[1]},
			year: day.Year(), month: day.Month(), day: day.Day(),
		})
	}

	return out
}

// findRanges locates start/end clock-time pairs. A meridiem on the end
// time applies to a bare start ("2-4pm" means 2pm-4pm).
func findRanges(text string) []rangeMatch {
	var out []rangeMatch
	for _, m := range reTimeRange.FindAllStringSubmatchIndex(text, -1) {
		startH := atoi(text[m[2]:m[3]])
		startM := 0
		if m[4] >= 0 {
			startM = atoi(text[m[4]:m[5]])
		}
		endH := atoi(text[m[8]:m[9]])
		endM := 0
		if m[10] >= 0 {
			endM = atoi(text[m[10]:m[11]])
		}
		endMeridiem := strings.ToLower(text[m[12]:m[13]])[:1]
		startMeridiem := endMeridiem
		if m[6] >= 0 {
			startMeridiem = strings.ToLower(text[m[6]:m[7]])[:1]
		}
		sh, ok1 := to24h(startH, startMeridiem)
		eh, ok2 := to24h(endH, endMeridiem)
		if !ok1 || !ok2 {
			continue
		}
		span := event.Span{Start: m[0], End: m[1]}
		out = append(out, rangeMatch{
			span:  span,
			start: timeMatch{span: span, hour: sh, minute: startM, grain: event.GrainMinute},
			end:   timeMatch{span: span, hour: eh, minute: endM, grain: event.GrainMinute},
		})
	}
	return out
}

// findTimes locates standalone clock times, skipping anything already
// consumed by a range match.
func findTimes(text string, ranges []rangeMatch) []timeMatch {
	var out []timeMatch
	taken := func(s event.Span) bool {
		for _, r := range ranges {
			if s.Overlaps(r.span) {
				return true
			}
		}
		return false
	}

	for _, m := range reMeridiemTime.FindAllStringSubmatchIndex(text, -1) {
		span := event.Span{Start: m[0], End: m[1]}
		if taken(span) {
			continue
		}
		h := atoi(text[m[2]:m[3]])
		h24, ok := to24h(h, strings.ToLower(text[m[8]:m[9]]))
		if !ok {
			continue
		}
		tm := timeMatch{span: span, hour: h24, grain: event.GrainMinute}
		if m[4] >= 0 {
			tm.minute = atoi(text[m[4]:m[5]])
		}
		if m[6] >= 0 {
			tm.second = atoi(text[m[6]:m[7]])
			tm.grain = event.GrainSecond
		}
		tm.hasZone = hasZoneAfter(text, span)
		out = append(out, tm)
	}

	for _, m := range re24hTime.FindAllStringSubmatchIndex(text, -1) {
		span := event.Span{Start: m[0], End: m[1]}
		if taken(span) || overlapsTimes(span, out) {
			continue
		}
		tm := timeMatch{
			span:   span,
			hour:   atoi(text[m[2]:m[3]]),
			minute: atoi(text[m[4]:m[5]]),
			grain:  event.GrainMinute,
		}
		if m[6] >= 0 {
			tm.second = atoi(text[m[6]:m[7]])
			tm.grain = event.GrainSecond
		}
		tm.hasZone = hasZoneAfter(text, span)
		out = append(out, tm)
	}

	for _, m := range reNamedTime.FindAllStringSubmatchIndex(text, -1) {
		span := event.Span{Start: m[0], End: m[1]}
		if taken(span) {
			continue
		}
		tm := timeMatch{span: span, grain: event.GrainMinute}
		switch strings.ToLower(text[m[2]:m[3]]) {
		case "noon", "midday":
			tm.hour = 12
		case "midnight":
			tm.hour = 0
		}
		out = append(out, tm)
	}

	return out
}

// findDurations locates explicit durations.
func findDurations(text string) []durationMatch {
	var out []durationMatch
	for _, m := range reDuration.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(text[m[4]:m[5]])
		var d time.Duration
		if strings.HasPrefix(unit, "h") {
			d = time.Duration(n * float64(time.Hour))
		} else {
			d = time.Duration(n * float64(time.Minute))
		}
		if d <= 0 || d > 24*time.Hour {
			continue
		}
		out = append(out, durationMatch{span: event.Span{Start: m[0], End: m[1]}, d: d})
	}
	return out
}

// to24h converts a 12-hour clock reading to 24-hour. meridiem is "a" or "p".
func to24h(h int, meridiem string) (int, bool) {
	if h < 1 || h > 12 {
		return 0, false
	}
	if strings.HasPrefix(meridiem, "p") && h != 12 {
		h += 12
	}
	if strings.HasPrefix(meridiem, "a") && h == 12 {
		h = 0
	}
	return h, true
}

// hasZoneAfter reports whether an explicit timezone token directly follows
// the time span.
func hasZoneAfter(text string, s event.Span) bool {
	tail := text[s.End:]
	if len(tail) > 12 {
		tail = tail[:12]
	}
	loc := reZoneToken.FindStringIndex(tail)
	return loc != nil && loc[0] <= 2
}

// forwardYear picks the year in which month/day next occurs at or after
// the reference date.
func forwardYear(ref time.Time, m time.Month, d int) int {
	candidate := time.Date(ref.Year(), m, d, 0, 0, 0, 0, ref.Location())
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	if candidate.Before(refDay) {
		return ref.Year() + 1
	}
	return ref.Year()
}

func overlapsAny(s event.Span, dates []dateMatch) bool {
	for _, d := range dates {
		if s.Overlaps(d.span) {
			return true
		}
	}
	return false
}

func overlapsTimes(s event.Span, times []timeMatch) bool {
	for _, t := range times {
		if s.Overlaps(t.span) {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
