package event

// LockedFields is the set of fields whose confidence was HIGH when
// enhancement was invoked. It is an immutable constraint on the
// enhancement tier: model output must not alter any field in the set, and
// the fields' spans are excised from the text the model sees.
type LockedFields map[Field]FieldResult

// Locked reports whether the field is in the set.
func (l LockedFields) Locked(f Field) bool {
	_, ok := l[f]
	return ok
}

// Residual returns the input text with every locked-field span blanked
// out. Spans are replaced by spaces rather than removed so offsets into
// the original text stay valid for enhancement-produced spans.
func (l LockedFields) Residual(text string) string {
	if len(l) == 0 {
		return text
	}
	buf := []byte(text)
	for _, r := range l {
		start, end := r.Span.Start, r.Span.End
		if start < 0 || end > len(buf) || start >= end {
			continue
		}
		for i := start; i < end; i++ {
			buf[i] = ' '
		}
	}
	return string(buf)
}
