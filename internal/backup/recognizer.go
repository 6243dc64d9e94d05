// Package backup implements the secondary deterministic extraction tier:
// external rule-based temporal and entity recognizers behind a uniform
// interface. The tier is optional middleware — recognizer unavailability
// degrades to an empty result, never a request failure.
package backup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JacoLabs/eventparse/internal/event"
)

// Recognizer is one external rule-based recognition service. New
// recognizers plug in here without touching the router.
type Recognizer interface {
	// Name identifies the recognizer in logs and audit records.
	Name() string

	// Recognize returns candidate results for the field, with raw
	// confidences in the backup band. An unreachable service returns an
	// error; it is the registry's job to degrade.
	Recognize(ctx context.Context, text string, field event.Field, ref time.Time, tz string) ([]event.FieldResult, error)
}

// Registry fans a field out over the configured recognizers and collects
// their candidates. Failures are logged and skipped.
type Registry struct {
	recognizers []Recognizer
	logger      *zap.Logger
}

// NewRegistry creates a registry over the given recognizers.
func NewRegistry(logger *zap.Logger, recognizers ...Recognizer) *Registry {
	return &Registry{recognizers: recognizers, logger: logger.Named("backup")}
}

// Empty reports whether no recognizer is configured.
func (r *Registry) Empty() bool {
	return len(r.recognizers) == 0
}

// Extract queries every recognizer for the field. The returned degraded
// flag is true when at least one recognizer was unavailable.
func (r *Registry) Extract(ctx context.Context, text string, field event.Field, ref time.Time, tz string) ([]event.FieldResult, bool) {
	var out []event.FieldResult
	degraded := false
	for _, rec := range r.recognizers {
		started := time.Now()
		candidates, err := rec.Recognize(ctx, text, field, ref, tz)
		if err != nil {
			degraded = true
			r.logger.Warn("recognizer unavailable, degrading",
				zap.String("recognizer", rec.Name()),
				zap.String("field", string(field)),
				zap.Error(err),
			)
			continue
		}
		latency := time.Since(started)
		for i := range candidates {
			candidates[i].Field = field
			candidates[i].Source = event.SourceBackup
			candidates[i].Confidence = clampBand(candidates[i].Confidence)
			candidates[i].Latency = latency
		}
		out = append(out, candidates...)
	}
	return out, degraded
}

// clampBand forces raw recognizer confidence into the backup band
// [0.6, 0.8]: a rule-based second opinion is never trusted above the
// pattern tier's explicit matches.
func clampBand(c float64) float64 {
	if c < 0.6 {
		return 0.6
	}
	if c > 0.8 {
		return 0.8
	}
	return c
}
