package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/event"
)

func TestRoute(t *testing.T) {
	r := New(config.Default().Engine)

	result := func(f event.Field, conf float64) *event.FieldResult {
		return &event.FieldResult{Field: f, Value: "x", Confidence: conf}
	}

	tests := []struct {
		name      string
		field     event.Field
		best      *event.FieldResult
		attempted event.TierSet
		want      event.Decision
	}{
		{
			name:      "optional high accepts",
			field:     event.FieldLocation,
			best:      result(event.FieldLocation, 0.85),
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionAccept,
		},
		{
			name:      "essential needs higher confidence to accept",
			field:     event.FieldTitle,
			best:      result(event.FieldTitle, 0.85),
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionEscalateBackup,
		},
		{
			name:      "essential high accepts",
			field:     event.FieldTitle,
			best:      result(event.FieldTitle, 0.9),
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionAccept,
		},
		{
			name:      "optional medium escalates to backup",
			field:     event.FieldLocation,
			best:      result(event.FieldLocation, 0.7),
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionEscalateBackup,
		},
		{
			name:      "optional medium after backup settles",
			field:     event.FieldLocation,
			best:      result(event.FieldLocation, 0.7),
			attempted: event.TierSet{Pattern: true, Backup: true},
			want:      event.DecisionAccept,
		},
		{
			name:      "essential medium after backup tries enhancement",
			field:     event.FieldStart,
			best:      result(event.FieldStart, 0.75),
			attempted: event.TierSet{Pattern: true, Backup: true},
			want:      event.DecisionEscalateEnhancement,
		},
		{
			name:      "essential medium after all tiers accepts",
			field:     event.FieldStart,
			best:      result(event.FieldStart, 0.75),
			attempted: event.TierSet{Pattern: true, Backup: true, Enhancement: true},
			want:      event.DecisionAccept,
		},
		{
			name:      "essential low skips backup for enhancement",
			field:     event.FieldStart,
			best:      result(event.FieldStart, 0.3),
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionEscalateEnhancement,
		},
		{
			name:      "essential unresolved escalates to enhancement",
			field:     event.FieldTitle,
			best:      nil,
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionEscalateEnhancement,
		},
		{
			name:      "optional low with value accepts",
			field:     event.FieldDescription,
			best:      result(event.FieldDescription, 0.3),
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionAccept,
		},
		{
			name:      "optional unresolved stays unresolved",
			field:     event.FieldDescription,
			best:      nil,
			attempted: event.TierSet{Pattern: true},
			want:      event.DecisionUnresolved,
		},
		{
			name:      "essential unresolved after enhancement gives up",
			field:     event.FieldTitle,
			best:      nil,
			attempted: event.TierSet{Pattern: true, Enhancement: true},
			want:      event.DecisionUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Route(tt.field, tt.best, tt.attempted)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBand_EssentialBoost(t *testing.T) {
	r := New(config.Default().Engine)

	best := &event.FieldResult{Field: event.FieldTitle, Value: "x", Confidence: 0.85}
	assert.Equal(t, event.BandMedium, r.Band(event.FieldTitle, best))

	best = &event.FieldResult{Field: event.FieldLocation, Value: "x", Confidence: 0.85}
	assert.Equal(t, event.BandHigh, r.Band(event.FieldLocation, best))
}
