// Package pipeline orchestrates the extraction tiers: pattern first, then
// per-field confidence routing through backup and constrained enhancement,
// cross-field validation, and aggregation into the final parsed event.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JacoLabs/eventparse/internal/arbiter"
	"github.com/JacoLabs/eventparse/internal/backup"
	"github.com/JacoLabs/eventparse/internal/cache"
	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/enhance"
	"github.com/JacoLabs/eventparse/internal/event"
	"github.com/JacoLabs/eventparse/internal/pattern"
	"github.com/JacoLabs/eventparse/internal/router"
	"github.com/JacoLabs/eventparse/internal/validate"
)

// ErrUnknownField is returned when a subset request names a field that
// does not exist.
var ErrUnknownField = errors.New("unknown field")

// Request is one extraction request.
type Request struct {
	Text          string
	Timezone      string
	Locale        string
	ReferenceTime time.Time
	// Fields restricts processing to a subset. Empty means every field.
	// Subset requests bypass the cache.
	Fields []event.Field
	// Audit requests the per-tier trace; audit responses also bypass the
	// cache.
	Audit bool
}

// Pipeline wires the tiers together. Safe for concurrent use.
type Pipeline struct {
	cfg      *config.Config
	pattern  *pattern.Extractor
	arbiter  *arbiter.Arbiter
	router   *router.Router
	backup   *backup.Registry
	enhancer *enhance.Engine
	cache    *cache.Cache
	logger   *zap.Logger
	metrics  *Metrics
}

// New assembles a pipeline. backupReg and enhancer may be empty or
// unavailable; the pipeline degrades around them. resultCache may be nil
// when caching is disabled.
func New(cfg *config.Config, backupReg *backup.Registry, enhancer *enhance.Engine, resultCache *cache.Cache, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		pattern:  pattern.NewExtractor(cfg.Engine),
		arbiter:  arbiter.New(cfg.Engine),
		router:   router.New(cfg.Engine),
		backup:   backupReg,
		enhancer: enhancer,
		cache:    resultCache,
		logger:   logger.Named("pipeline"),
		metrics:  NewMetrics(),
	}
}

// CacheStats exposes cache counters for the operational stats endpoint.
func (p *Pipeline) CacheStats() cache.Stats {
	if p.cache == nil {
		return cache.Stats{}
	}
	return p.cache.Stats()
}

// Parse runs one request through the pipeline. The returned audit record
// is always freshly computed, even on a cache hit, so it reflects the
// lookup path of this request. The only hard error is malformed input;
// every dependency failure degrades into a partial event.
func (p *Pipeline) Parse(ctx context.Context, req Request) (*event.ParsedEvent, *event.AuditRecord, error) {
	if err := validate.Input(req.Text, p.cfg.Engine.MaxTextBytes, req.Timezone); err != nil {
		return nil, nil, err
	}

	requested, err := resolveRequestedFields(req.Fields)
	if err != nil {
		return nil, nil, err
	}
	partial := len(req.Fields) > 0 && len(requested) < len(event.AllFields())

	audit := event.NewAuditRecord(uuid.NewString())
	started := time.Now()
	defer func() {
		audit.TotalLatency = time.Since(started)
		p.metrics.RequestDuration.Observe(time.Since(started).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Engine.RequestDeadline)
	defer cancel()

	// Audit-mode and partial-field requests are not representative of the
	// canonical full-field computation and must not pollute shared cache
	// state.
	if p.cache == nil || req.Audit || partial {
		audit.CacheStatus = event.CacheBypass
		result, err := p.execute(ctx, req, requested, audit)
		return result, audit, err
	}

	key := cache.NewKey(req.Text, req.Timezone, req.Locale, requested, config.EngineVersion)
	result, status, err := p.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*event.ParsedEvent, error) {
		return p.execute(ctx, req, requested, audit)
	})
	audit.CacheStatus = status
	return result, audit, err
}

// execute runs the tier sequence for one request.
func (p *Pipeline) execute(ctx context.Context, req Request, requested []event.Field, audit *event.AuditRecord) (*event.ParsedEvent, error) {
	tracer := otel.Tracer("eventparse/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	ref := req.ReferenceTime
	if ref.IsZero() {
		ref = time.Now()
	}
	loc := time.UTC
	if req.Timezone != "" {
		// Already validated; LoadLocation cannot fail here.
		loc, _ = time.LoadLocation(req.Timezone)
	}

	state := newRequestState(requested)
	var path []string
	var warnings []event.Warning

	// Tier 1: pattern extraction across all fields, synchronous CPU work.
	patternStart := time.Now()
	candidates := p.pattern.Extract(req.Text, ref, loc)
	audit.AddTierLatency(event.SourcePattern, time.Since(patternStart))
	p.metrics.TierInvocations.WithLabelValues(string(event.SourcePattern)).Inc()
	path = append(path, string(event.SourcePattern))

	for _, f := range requested {
		state.addCandidates(f, candidates[f])
		state.attempted[f].Mark(event.SourcePattern)
		state.arbitrate(p.arbiter, f)
	}

	// Tier 2: backup recognizers for medium-band fields.
	backupFields := p.routePass(state, requested, audit, event.DecisionEscalateBackup)
	if len(backupFields) > 0 {
		if p.backup != nil && !p.backup.Empty() && ctx.Err() == nil {
			path = append(path, string(event.SourceBackup))
			p.runBackup(ctx, req.Text, backupFields, state, audit, ref, req.Timezone)
		} else {
			// No recognizer available. The tier still counts as attempted
			// so essential fields can move on to enhancement.
			for _, f := range backupFields {
				state.attempted[f].Mark(event.SourceBackup)
			}
		}
	}

	// Tier 3: constrained enhancement for whatever is still low.
	enhanceFields := p.routePass(state, requested, audit, event.DecisionEscalateEnhancement)
	if len(enhanceFields) > 0 && p.enhancer.Available() && ctx.Err() == nil {
		path = append(path, string(event.SourceEnhancement))
		warnings = append(warnings, p.runEnhancement(ctx, req.Text, requested, enhanceFields, state, audit, ref, req.Timezone)...)
	}

	if ctx.Err() != nil {
		warnings = append(warnings, event.Warning{
			Code:    event.WarnDeadlineExceeded,
			Message: "request deadline exceeded; unresolved fields carry their best available result",
		})
	}

	result := p.aggregate(requested, state, path, warnings)
	span.SetAttributes(
		attribute.Float64("overall_confidence", result.OverallConfidence),
		attribute.StringSlice("processing_path", result.ProcessingPath),
	)
	return result, nil
}

// routePass routes every requested field and returns those whose decision
// matches want. All decisions are recorded in the audit trail.
func (p *Pipeline) routePass(state *requestState, requested []event.Field, audit *event.AuditRecord, want event.Decision) []event.Field {
	var out []event.Field
	for _, f := range requested {
		best := state.best[f]
		decision := p.router.Route(f, best, *state.attempted[f])
		confidence := 0.0
		if best.Resolved() {
			confidence = best.Confidence
		}
		audit.Record(f, lastTier(*state.attempted[f]), decision, confidence, p.router.Band(f, best))
		p.metrics.RoutingDecisions.WithLabelValues(string(decision)).Inc()
		if decision == want {
			out = append(out, f)
		}
	}
	return out
}

// runBackup fans the escalated fields out over the recognizer registry.
// Fields share read-only input, so they extract concurrently.
func (p *Pipeline) runBackup(ctx context.Context, text string, fields []event.Field, state *requestState, audit *event.AuditRecord, ref time.Time, tz string) {
	ctx, span := otel.Tracer("eventparse/pipeline").Start(ctx, "pipeline.backup")
	defer span.End()
	span.SetAttributes(attribute.Int("fields", len(fields)))

	tierStart := time.Now()
	p.metrics.TierInvocations.WithLabelValues(string(event.SourceBackup)).Inc()

	results := make([][]event.FieldResult, len(fields))
	degraded := make([]bool, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		g.Go(func() error {
			results[i], degraded[i] = p.backup.Extract(gctx, text, f, ref, tz)
			return nil
		})
	}
	_ = g.Wait() // recognizer failures degrade, they never abort

	for i, f := range fields {
		state.addCandidates(f, results[i])
		state.attempted[f].Mark(event.SourceBackup)
		if degraded[i] {
			audit.MarkDegraded("backup")
		}
		state.arbitrate(p.arbiter, f)
	}
	audit.AddTierLatency(event.SourceBackup, time.Since(tierStart))
}

// runEnhancement makes the single bounded model call. Unresolved optional
// fields ride along with the escalated essential fields; fields that are
// HIGH at this moment are locked and excised from the model's input.
func (p *Pipeline) runEnhancement(ctx context.Context, text string, requested, escalated []event.Field, state *requestState, audit *event.AuditRecord, ref time.Time, tz string) []event.Warning {
	ctx, span := otel.Tracer("eventparse/pipeline").Start(ctx, "pipeline.enhancement")
	defer span.End()
	span.SetAttributes(attribute.Int("fields", len(escalated)))

	tierStart := time.Now()
	p.metrics.TierInvocations.WithLabelValues(string(event.SourceEnhancement)).Inc()

	locked := make(event.LockedFields)
	for _, f := range requested {
		if best := state.best[f]; best.Resolved() && p.cfg.Engine.Bands.Classify(best.Confidence) == event.BandHigh {
			locked[f] = *best
		}
	}

	unresolved := append([]event.Field{}, escalated...)
	for _, f := range requested {
		if locked.Locked(f) || containsField(unresolved, f) {
			continue
		}
		if !state.best[f].Resolved() {
			unresolved = append(unresolved, f)
		}
	}

	for _, f := range unresolved {
		state.attempted[f].Mark(event.SourceEnhancement)
	}

	res, err := p.enhancer.Enhance(ctx, text, unresolved, locked, ref, tz)
	audit.AddTierLatency(event.SourceEnhancement, time.Since(tierStart))
	if err != nil {
		if errors.Is(err, enhance.ErrUnavailable) {
			audit.MarkDegraded("enhancement")
			return nil
		}
		// Anything else still degrades; enhancement never fails a request.
		p.logger.Warn("enhancement failed", zap.Error(err))
		audit.MarkDegraded("enhancement")
		return nil
	}
	if res.Partial {
		audit.MarkDegraded("enhancement")
	}

	for _, f := range unresolved {
		if r, ok := res.Fields[f]; ok {
			state.addCandidates(f, []event.FieldResult{r})
			state.arbitrate(p.arbiter, f)
		}
	}
	return res.Warnings
}

// resolveRequestedFields expands and validates the requested field set.
func resolveRequestedFields(fields []event.Field) ([]event.Field, error) {
	if len(fields) == 0 {
		return event.AllFields(), nil
	}
	seen := make(map[event.Field]bool, len(fields))
	for _, f := range fields {
		if !f.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		seen[f] = true
	}
	// Canonical order keeps responses deterministic regardless of the
	// order the caller listed fields in.
	var out []event.Field
	for _, f := range event.AllFields() {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

func containsField(list []event.Field, f event.Field) bool {
	for _, x := range list {
		if x == f {
			return true
		}
	}
	return false
}

// lastTier names the most recent tier attempted, for audit records.
func lastTier(t event.TierSet) event.Source {
	switch {
	case t.Enhancement:
		return event.SourceEnhancement
	case t.Backup:
		return event.SourceBackup
	default:
		return event.SourcePattern
	}
}

// sortWarnings orders warnings deterministically so cached and fresh
// responses serialize identically.
func sortWarnings(warnings []event.Warning) {
	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Code != warnings[j].Code {
			return warnings[i].Code < warnings[j].Code
		}
		return warnings[i].Field < warnings[j].Field
	})
}
