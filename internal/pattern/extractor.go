package pattern

import (
	"sort"
	"strings"
	"time"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

// Extractor is the deterministic pattern tier. It is stateless and safe
// for concurrent use.
type Extractor struct {
	cfg config.EngineConfig
}

// NewExtractor creates a pattern extractor with the given tuning.
func NewExtractor(cfg config.EngineConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract runs every pattern family against the text and returns candidate
// results per field. Absence of a match is an absent key, never an error.
func (e *Extractor) Extract(text string, ref time.Time, loc *time.Location) map[event.Field][]event.FieldResult {
	started := time.Now()
	out := make(map[event.Field][]event.FieldResult)

	dates := findDates(text, ref, loc)
	sort.Slice(dates, func(i, j int) bool { return dates[i].span.Start < dates[j].span.Start })
	ranges := findRanges(text)
	times := findTimes(text, ranges)
	sort.Slice(times, func(i, j int) bool { return times[i].span.Start < times[j].span.Start })
	durations := findDurations(text)

	e.extractDatetimes(out, text, ref, loc, dates, ranges, times, durations)
	e.extractRecurrence(out, text)
	e.extractLocation(out, text, dates, times)
	e.extractTitle(out, text, dates, ranges, times, durations)

	latency := time.Since(started)
	for f, results := range out {
		for i := range results {
			results[i].Latency = latency
		}
		out[f] = results
	}
	return out
}

// extractDatetimes combines date, time, range, and duration matches into
// start/end/all_day candidates.
func (e *Extractor) extractDatetimes(out map[event.Field][]event.FieldResult, text string, ref time.Time, loc *time.Location,
	dates []dateMatch, ranges []rangeMatch, times []timeMatch, durations []durationMatch) {

	ref = ref.In(loc)

	// Date-less time mentions anchor to the reference day, rolling forward
	// when the time has already passed.
	if len(dates) == 0 && (len(times) > 0 || len(ranges) > 0) {
		day := ref
		var tm timeMatch
		if len(ranges) > 0 {
			tm = ranges[0].start
		} else {
			tm = times[0]
		}
		candidate := time.Date(day.Year(), day.Month(), day.Day(), tm.hour, tm.minute, tm.second, 0, loc)
		if candidate.Before(ref) {
			day = day.AddDate(0, 0, 1)
		}
		dates = []dateMatch{{span: tm.span, year: day.Year(), month: day.Month(), day: day.Day()}}
	}
	if len(dates) == 0 {
		return
	}

	d := dates[0]
	var alternatives []string
	for _, other := range dates[1:] {
		alternatives = append(alternatives, time.Date(other.year, other.month, other.day, 0, 0, 0, 0, loc).Format("2006-01-02"))
	}

	switch {
	case len(ranges) > 0:
		r := ranges[0]
		start := time.Date(d.year, d.month, d.day, r.start.hour, r.start.minute, 0, 0, loc)
		end := time.Date(d.year, d.month, d.day, r.end.hour, r.end.minute, 0, 0, loc)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		span := coverSpan(d.span, r.span)
		conf := e.timeConfidence(event.GrainMinute, span, false)
		out[event.FieldStart] = append(out[event.FieldStart], event.FieldResult{
			Field: event.FieldStart, Value: start.Format(time.RFC3339), Source: event.SourcePattern,
			Confidence: conf, Span: span, Grain: event.GrainMinute, HasTimezone: true,
			Alternatives: alternatives,
		})
		out[event.FieldEnd] = append(out[event.FieldEnd], event.FieldResult{
			Field: event.FieldEnd, Value: end.Format(time.RFC3339), Source: event.SourcePattern,
			Confidence: conf, Span: span, Grain: event.GrainMinute, HasTimezone: true,
		})
		e.addAllDay(out, false, conf, span)

	case len(times) > 0:
		tm := nearestTime(d.span, times)
		start := time.Date(d.year, d.month, d.day, tm.hour, tm.minute, tm.second, 0, loc)
		span := coverSpan(d.span, tm.span)
		conf := e.timeConfidence(tm.grain, span, tm.hasZone)
		out[event.FieldStart] = append(out[event.FieldStart], event.FieldResult{
			Field: event.FieldStart, Value: start.Format(time.RFC3339), Source: event.SourcePattern,
			Confidence: conf, Span: span, Grain: tm.grain, HasTimezone: true,
			Alternatives: alternatives,
		})

		endDur := time.Hour // default meeting length when nothing states one
		endConf := conf
		endSpan := span
		if len(durations) > 0 {
			endDur = durations[0].d
			endSpan = coverSpan(span, durations[0].span)
		}
		out[event.FieldEnd] = append(out[event.FieldEnd], event.FieldResult{
			Field: event.FieldEnd, Value: start.Add(endDur).Format(time.RFC3339), Source: event.SourcePattern,
			Confidence: endConf, Span: endSpan, Grain: tm.grain, HasTimezone: true,
		})
		e.addAllDay(out, false, conf, span)

	default:
		// Date with no time at all: an all-day event bounded midnight to
		// midnight, never a synthetic default hour.
		start := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
		conf := e.timeConfidence(event.GrainDay, d.span, false)
		out[event.FieldStart] = append(out[event.FieldStart], event.FieldResult{
			Field: event.FieldStart, Value: start.Format(time.RFC3339), Source: event.SourcePattern,
			Confidence: conf, Span: d.span, Grain: event.GrainDay, HasTimezone: true,
			Alternatives: alternatives,
		})
		out[event.FieldEnd] = append(out[event.FieldEnd], event.FieldResult{
			Field: event.FieldEnd, Value: start.AddDate(0, 0, 1).Format(time.RFC3339), Source: event.SourcePattern,
			Confidence: conf, Span: d.span, Grain: event.GrainDay, HasTimezone: true,
		})
		e.addAllDay(out, true, conf, d.span)
	}
}

func (e *Extractor) addAllDay(out map[event.Field][]event.FieldResult, allDay bool, conf float64, span event.Span) {
	value := "false"
	if allDay {
		value = "true"
	}
	out[event.FieldAllDay] = append(out[event.FieldAllDay], event.FieldResult{
		Field: event.FieldAllDay, Value: value, Source: event.SourcePattern,
		Confidence: conf, Span: span,
	})
}

// timeConfidence assigns the pattern-tier confidence: base for any match,
// a bonus for minute-or-finer grain, a further bonus when the text states
// a timezone outright, and a penalty for prose-length spans. Pattern
// datetime values are always zone-complete because they resolve in the
// request timezone; the explicitZone bonus rewards text that states one.
func (e *Extractor) timeConfidence(grain event.Grain, span event.Span, explicitZone bool) float64 {
	conf := e.cfg.PatternBase
	switch grain {
	case event.GrainMinute:
		conf += e.cfg.ExplicitBonus
	case event.GrainSecond:
		conf += e.cfg.ExplicitBonus + 0.05
	}
	if explicitZone {
		conf += 0.05
	}
	if span.Len() > e.cfg.LongSpanChars {
		conf -= e.cfg.LongSpanPenalty
	}
	return clamp01(conf)
}

// extractRecurrence maps repetition phrases to RRULE-style values.
func (e *Extractor) extractRecurrence(out map[event.Field][]event.FieldResult, text string) {
	add := func(span event.Span, rule string) {
		out[event.FieldRecurrence] = append(out[event.FieldRecurrence], event.FieldResult{
			Field: event.FieldRecurrence, Value: rule, Source: event.SourcePattern,
			Confidence: e.cfg.PatternBase, Span: span,
		})
	}

	byDay := map[string]string{
		"monday": "MO", "tuesday": "TU", "wednesday": "WE", "thursday": "TH",
		"friday": "FR", "saturday": "SA", "sunday": "SU",
	}
	if m := reEveryWeekday.FindStringSubmatchIndex(text); m != nil {
		span := event.Span{Start: m[0], End: m[1]}
		switch word := strings.ToLower(text[m[2]:m[3]]); word {
		case "day", "morning":
			add(span, "FREQ=DAILY")
		case "week":
			add(span, "FREQ=WEEKLY")
		case "month":
			add(span, "FREQ=MONTHLY")
		case "weekday":
			add(span, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR")
		default:
			add(span, "FREQ=WEEKLY;BYDAY="+byDay[word])
		}
		return
	}
	if m := reFreqWord.FindStringSubmatchIndex(text); m != nil {
		span := event.Span{Start: m[0], End: m[1]}
		switch strings.ToLower(text[m[2]:m[3]]) {
		case "daily":
			add(span, "FREQ=DAILY")
		case "weekly":
			add(span, "FREQ=WEEKLY")
		case "biweekly":
			add(span, "FREQ=WEEKLY;INTERVAL=2")
		case "monthly":
			add(span, "FREQ=MONTHLY")
		case "annually", "yearly":
			add(span, "FREQ=YEARLY")
		}
	}
}

// extractLocation finds venue phrases that do not collide with temporal
// matches.
func (e *Extractor) extractLocation(out map[event.Field][]event.FieldResult, text string, dates []dateMatch, times []timeMatch) {
	temporal := collectSpans(dates, nil, times, nil)
	conflicts := func(s event.Span) bool {
		for _, t := range temporal {
			if s.Overlaps(t) {
				return true
			}
		}
		return false
	}

	type candidate struct {
		span  event.Span
		value string
	}
	var candidates []candidate

	for _, m := range reLocPhrase.FindAllStringSubmatchIndex(text, -1) {
		span := event.Span{Start: m[2], End: m[3]}
		if conflicts(span) {
			continue
		}
		candidates = append(candidates, candidate{span: span, value: text[m[2]:m[3]]})
	}
	for _, m := range reRoom.FindAllStringSubmatchIndex(text, -1) {
		span := event.Span{Start: m[2], End: m[3]}
		if conflicts(span) {
			continue
		}
		candidates = append(candidates, candidate{span: span, value: text[m[2]:m[3]]})
	}
	for _, m := range reVirtual.FindAllStringSubmatchIndex(text, -1) {
		span := event.Span{Start: m[2], End: m[3]}
		candidates = append(candidates, candidate{span: span, value: text[m[2]:m[3]]})
	}

	// Overlapping candidates collapse to the longest.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].span.Len() > candidates[j].span.Len() })
	var kept []candidate
	for _, c := range candidates {
		overlapped := false
		for _, k := range kept {
			if c.span.Overlaps(k.span) {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, c)
		}
	}

	for i, c := range kept {
		conf := e.cfg.PatternBase
		if c.span.Len() > e.cfg.LongSpanChars {
			conf -= e.cfg.LongSpanPenalty
		}
		r := event.FieldResult{
			Field: event.FieldLocation, Value: c.value, Source: event.SourcePattern,
			Confidence: clamp01(conf), Span: c.span,
		}
		if i == 0 {
			for _, other := range kept[1:] {
				r.Alternatives = append(r.Alternatives, other.value)
			}
		}
		out[event.FieldLocation] = append(out[event.FieldLocation], r)
	}
}

// extractTitle takes the clause preceding the first temporal or location
// marker as the event title.
func (e *Extractor) extractTitle(out map[event.Field][]event.FieldResult, text string,
	dates []dateMatch, ranges []rangeMatch, times []timeMatch, durations []durationMatch) {

	spans := collectSpans(dates, ranges, times, durations)
	lower := strings.ToLower(text)
	for _, r := range out[event.FieldLocation] {
		// Include the preposition before the location phrase.
		start := r.Span.Start
		for _, prep := range []string{"in ", "at "} {
			if p := start - len(prep); p >= 0 && lower[p:start] == prep {
				start = p
				break
			}
		}
		spans = append(spans, event.Span{Start: start, End: r.Span.End})
	}
	for _, r := range out[event.FieldRecurrence] {
		spans = append(spans, r.Span)
	}

	cut := len(text)
	for _, s := range spans {
		if s.Start < cut {
			cut = s.Start
		}
	}

	title := trimTitle(text[:cut])
	if title == "" && cut < len(text) {
		// Text opens with the temporal phrase; look after the last marker.
		tail := 0
		for _, s := range spans {
			if s.End > tail {
				tail = s.End
			}
		}
		if tail < len(text) {
			title = trimTitle(text[tail:])
		}
	}
	if title == "" {
		return
	}

	conf := e.cfg.PatternBase
	if len(spans) > 0 {
		// A temporal or venue anchor delimits the clause cleanly.
		conf += e.cfg.ExplicitBonus
	} else {
		// No anchor at all: the clause is a guess.
		conf -= 0.1
	}
	if len(title) > e.cfg.LongSpanChars {
		conf -= e.cfg.LongSpanPenalty
	}
	if reHedge.MatchString(text) {
		conf -= 0.3
	}

	idx := strings.Index(text, title)
	if idx < 0 {
		idx = 0
	}
	out[event.FieldTitle] = append(out[event.FieldTitle], event.FieldResult{
		Field: event.FieldTitle, Value: title, Source: event.SourcePattern,
		Confidence: clamp01(conf), Span: event.Span{Start: idx, End: idx + len(title)},
	})
}

// trimTitle strips connective words and punctuation left dangling once
// temporal and venue phrases are removed.
func trimTitle(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimRight(s, " ,.;:-–—")
		lower := strings.ToLower(trimmed)
		cutAny := false
		for _, suffix := range []string{" on", " at", " in", " from", " for", " the", " a", " an", " is", " starts"} {
			if strings.HasSuffix(lower, suffix) {
				trimmed = trimmed[:len(trimmed)-len(suffix)]
				cutAny = true
				break
			}
		}
		if !cutAny && trimmed == s {
			break
		}
		s = strings.TrimSpace(trimmed)
	}
	return strings.TrimSpace(s)
}

func collectSpans(dates []dateMatch, ranges []rangeMatch, times []timeMatch, durations []durationMatch) []event.Span {
	var spans []event.Span
	for _, d := range dates {
		spans = append(spans, d.span)
	}
	for _, r := range ranges {
		spans = append(spans, r.span)
	}
	for _, t := range times {
		spans = append(spans, t.span)
	}
	for _, d := range durations {
		spans = append(spans, d.span)
	}
	return spans
}

// nearestTime picks the time match closest to the date span.
func nearestTime(date event.Span, times []timeMatch) timeMatch {
	best := times[0]
	bestDist := spanDistance(date, best.span)
	for _, t := range times[1:] {
		if d := spanDistance(date, t.span); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

func spanDistance(a, b event.Span) int {
	if a.Overlaps(b) {
		return 0
	}
	if a.End <= b.Start {
		return b.Start - a.End
	}
	return a.Start - b.End
}

// coverSpan returns the smallest span containing both inputs.
func coverSpan(a, b event.Span) event.Span {
	s := a
	if b.Start < s.Start {
		s.Start = b.Start
	}
	if b.End > s.End {
		s.End = b.End
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
