package event

import "time"

// CacheStatus records how the cache participated in a request.
type CacheStatus string

// Cache statuses. Bypass covers audit-mode and partial-field requests,
// which never read or write shared cache state.
const (
	CacheHit    CacheStatus = "hit"
	CacheMiss   CacheStatus = "miss"
	CacheBypass CacheStatus = "bypass"
)

// RoutingStep is one router decision within a request.
type RoutingStep struct {
	Field      Field    `json:"field"`
	Tier       Source   `json:"tier"`
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Band       Band     `json:"band"`
}

// AuditRecord is the per-request trace of routing decisions, tier
// latencies, and cache participation. It is write-once and never cached:
// even on a cache hit the record reflects the lookup path of this request,
// not the one that originally computed the value.
type AuditRecord struct {
	RequestID     string                   `json:"request_id"`
	CacheStatus   CacheStatus              `json:"cache_status"`
	Steps         []RoutingStep            `json:"routing,omitempty"`
	TierLatencies map[string]time.Duration `json:"tier_latencies_ns,omitempty"`
	Degraded      []string                 `json:"degraded,omitempty"`
	TotalLatency  time.Duration            `json:"total_latency_ns"`
}

// NewAuditRecord creates an empty record for a request.
func NewAuditRecord(requestID string) *AuditRecord {
	return &AuditRecord{
		RequestID:     requestID,
		TierLatencies: make(map[string]time.Duration),
	}
}

// Record appends one routing decision.
func (a *AuditRecord) Record(field Field, tier Source, decision Decision, confidence float64, band Band) {
	a.Steps = append(a.Steps, RoutingStep{
		Field:      field,
		Tier:       tier,
		Decision:   decision,
		Confidence: confidence,
		Band:       band,
	})
}

// AddTierLatency accumulates latency for a tier across fields.
func (a *AuditRecord) AddTierLatency(tier Source, d time.Duration) {
	a.TierLatencies[string(tier)] += d
}

// MarkDegraded notes that an external dependency was unavailable and the
// pipeline continued without it.
func (a *AuditRecord) MarkDegraded(component string) {
	for _, c := range a.Degraded {
		if c == component {
			return
		}
	}
	a.Degraded = append(a.Degraded, component)
}
