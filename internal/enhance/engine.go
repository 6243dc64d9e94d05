package enhance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

// ErrUnavailable is returned when no provider is configured or the call
// could not complete. Callers treat it as dependency degradation, not a
// request failure.
var ErrUnavailable = errors.New("enhancement unavailable")

// systemPrompt fixes the output contract. The model sees only residual
// text and may only fill the requested fields.
const systemPrompt = `You extract calendar event fields from a text fragment.

Rules:
- Use ONLY the text provided. Never invent information that is not in it.
- Fill ONLY the requested fields. Return null for a field the text does not support.
- For each filled field return: "value", "text" (the exact snippet of the input that supports the value), and "confidence" (0.0 to 1.0).
- Value formats: start_datetime and end_datetime are RFC3339 in the given timezone; recurrence is an RRULE like FREQ=WEEKLY;BYDAY=MO; all_day is "true" or "false"; everything else is a short plain string copied from the text.

Respond ONLY with a JSON object of the form {"fields": {"<field>": {...} | null}}. No additional text.`

// Result is the outcome of one enhancement invocation. Partial results
// are a first-class outcome: a timeout yields whatever was validated
// before the deadline plus Partial=true, never an error.
type Result struct {
	Fields   map[event.Field]event.FieldResult
	Warnings []event.Warning
	Partial  bool
}

// Engine runs the constrained enhancement call.
type Engine struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewEngine creates the enhancement engine. provider may be nil, in which
// case every call degrades to ErrUnavailable.
func NewEngine(provider Provider, cfg config.EnhanceConfig, logger *zap.Logger) *Engine {
	return &Engine{
		provider: provider,
		timeout:  cfg.Timeout,
		logger:   logger.Named("enhance"),
	}
}

// Available reports whether a provider is configured.
func (e *Engine) Available() bool {
	return e != nil && e.provider != nil
}

// Enhance asks the model to fill the unresolved fields from the residual
// text — the input minus every locked-field span. Output is validated
// against the schema; attempts to populate a locked field are dropped
// with a constraint-violation warning, and values not traceable to the
// input are rejected by the hallucination guard.
func (e *Engine) Enhance(ctx context.Context, text string, unresolved []event.Field, locked event.LockedFields, ref time.Time, tz string) (Result, error) {
	if !e.Available() {
		return Result{}, ErrUnavailable
	}
	if len(unresolved) == 0 {
		return Result{Fields: map[event.Field]event.FieldResult{}}, nil
	}

	requested := make([]event.Field, 0, len(unresolved))
	for _, f := range unresolved {
		if !locked.Locked(f) {
			requested = append(requested, f)
		}
	}
	sort.Slice(requested, func(i, j int) bool { return requested[i] < requested[j] })

	residual := locked.Residual(text)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	raw, err := e.provider.Complete(ctx, systemPrompt, e.userPrompt(residual, requested, ref, tz))
	latency := time.Since(started)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Deadline hit: degrade to a partial (here: empty) result.
			e.logger.Warn("enhancement timed out, returning partial output",
				zap.Duration("timeout", e.timeout))
			return Result{Fields: map[event.Field]event.FieldResult{}, Partial: true}, nil
		}
		e.logger.Warn("enhancement call failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return e.validate(raw, text, requested, locked, latency), nil
}

// userPrompt assembles the per-request content.
func (e *Engine) userPrompt(residual string, requested []event.Field, ref time.Time, tz string) string {
	names := make([]string, len(requested))
	for i, f := range requested {
		names[i] = string(f)
	}
	return fmt.Sprintf("Reference time: %s\nTimezone: %s\nRequested fields: %s\n\nText:\n%s",
		ref.Format(time.RFC3339), tz, strings.Join(names, ", "), residual)
}

// validate filters raw model output through the schema, the locked-field
// constraint, and the hallucination guard.
func (e *Engine) validate(raw, original string, requested []event.Field, locked event.LockedFields, latency time.Duration) Result {
	res := Result{Fields: make(map[event.Field]event.FieldResult)}

	decoded, err := decodeResponse(raw)
	if err != nil {
		// Non-conforming output discards the whole enhancement, not the
		// request.
		e.logger.Warn("enhancement output rejected", zap.Error(err))
		res.Warnings = append(res.Warnings, event.Warning{
			Code:    event.WarnConstraintViolation,
			Message: "enhancement output was not schema-conforming and was discarded",
		})
		return res
	}

	wanted := make(map[event.Field]bool, len(requested))
	for _, f := range requested {
		wanted[f] = true
	}

	for name, payload := range decoded.Fields {
		field := event.Field(name)
		if payload == nil {
			continue
		}
		if locked.Locked(field) {
			// Fail-safe: never silently accept a write to a locked field.
			e.logger.Warn("enhancement attempted to alter locked field",
				zap.String("field", name))
			res.Warnings = append(res.Warnings, event.Warning{
				Code:    event.WarnConstraintViolation,
				Field:   field,
				Message: fmt.Sprintf("enhancement attempted to alter locked field %s; value discarded", name),
			})
			continue
		}
		if !field.Valid() || !wanted[field] {
			continue
		}
		if err := validateValue(field, payload.Value); err != nil {
			res.Warnings = append(res.Warnings, event.Warning{
				Code:    event.WarnConstraintViolation,
				Field:   field,
				Message: fmt.Sprintf("enhancement value for %s rejected: %v", name, err),
			})
			continue
		}

		span, ok := groundSpan(original, payload.Text)
		if !ok || !grounded(field, payload.Value, original) {
			res.Warnings = append(res.Warnings, event.Warning{
				Code:    event.WarnHallucinated,
				Field:   field,
				Message: fmt.Sprintf("enhancement value for %s is not traceable to the input text", name),
			})
			continue
		}

		confidence := payload.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.65
		}

		res.Fields[field] = event.FieldResult{
			Field:      field,
			Value:      payload.Value,
			Source:     event.SourceEnhancement,
			Confidence: confidence,
			Span:       span,
			Latency:    latency,
		}
	}

	return res
}
