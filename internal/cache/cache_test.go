package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacoLabs/eventparse/internal/event"
)

func parsed(title string) *event.ParsedEvent {
	return &event.ParsedEvent{
		Fields: map[event.Field]event.FieldResult{
			event.FieldTitle: {Field: event.FieldTitle, Value: title, Confidence: 0.9},
		},
		OverallConfidence: 0.9,
	}
}

func TestNewKey_Deterministic(t *testing.T) {
	fields := event.AllFields()

	k1 := NewKey("Meeting tomorrow at 2pm", "UTC", "en", fields, "v1")
	k2 := NewKey("Meeting tomorrow at 2pm", "UTC", "en", fields, "v1")
	assert.Equal(t, k1, k2)

	// Case and whitespace runs normalize away.
	k3 := NewKey("  meeting   TOMORROW at 2pm ", "UTC", "en", fields, "v1")
	assert.Equal(t, k1, k3)
}

func TestNewKey_Discriminates(t *testing.T) {
	fields := event.AllFields()
	base := NewKey("meeting tomorrow", "UTC", "en", fields, "v1")

	assert.NotEqual(t, base, NewKey("meeting friday", "UTC", "en", fields, "v1"))
	assert.NotEqual(t, base, NewKey("meeting tomorrow", "America/New_York", "en", fields, "v1"))
	assert.NotEqual(t, base, NewKey("meeting tomorrow", "UTC", "de", fields, "v1"))
	assert.NotEqual(t, base, NewKey("meeting tomorrow", "UTC", "en", fields[:2], "v1"))
	// An engine version bump must miss every existing entry.
	assert.NotEqual(t, base, NewKey("meeting tomorrow", "UTC", "en", fields, "v2"))
}

func TestCache_GetPut(t *testing.T) {
	c := New(time.Minute, 10)
	key := NewKey("a", "UTC", "", nil, "v1")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, parsed("standup"))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "standup", got.Fields[event.FieldTitle].Value)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	key := NewKey("a", "UTC", "", nil, "v1")

	c.Put(key, parsed("standup"))
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok, "expired entry must not be served")
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(time.Minute, 2)

	k1 := NewKey("one", "UTC", "", nil, "v1")
	k2 := NewKey("two", "UTC", "", nil, "v1")
	k3 := NewKey("three", "UTC", "", nil, "v1")

	c.Put(k1, parsed("one"))
	time.Sleep(time.Millisecond)
	c.Put(k2, parsed("two"))
	time.Sleep(time.Millisecond)

	// Touch k1 so k2 becomes least recently used.
	_, ok := c.Get(k1)
	require.True(t, ok)
	time.Sleep(time.Millisecond)

	c.Put(k3, parsed("three"))

	_, ok = c.Get(k2)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
}

func TestCache_GetOrCompute(t *testing.T) {
	c := New(time.Minute, 10)
	key := NewKey("a", "UTC", "", nil, "v1")

	var calls atomic.Int32
	compute := func(ctx context.Context) (*event.ParsedEvent, error) {
		calls.Add(1)
		return parsed("computed"), nil
	}

	got, status, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.Equal(t, event.CacheMiss, status)
	assert.Equal(t, "computed", got.Fields[event.FieldTitle].Value)

	got, status, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.Equal(t, event.CacheHit, status)
	assert.Equal(t, "computed", got.Fields[event.FieldTitle].Value)

	assert.Equal(t, int32(1), calls.Load(), "second call must be served from cache")
}

func TestCache_GetOrCompute_SingleFlight(t *testing.T) {
	c := New(time.Minute, 10)
	key := NewKey("a", "UTC", "", nil, "v1")

	var calls atomic.Int32
	gate := make(chan struct{})
	compute := func(ctx context.Context) (*event.ParsedEvent, error) {
		calls.Add(1)
		<-gate
		return parsed("shared"), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*event.ParsedEvent, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
			results[i] = got
		}()
	}

	// Let the goroutines pile up on the in-flight computation.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent identical requests must share one computation")
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "shared", r.Fields[event.FieldTitle].Value)
	}
}

func TestCache_GetOrCompute_ErrorNotCached(t *testing.T) {
	c := New(time.Minute, 10)
	key := NewKey("a", "UTC", "", nil, "v1")

	_, _, err := c.GetOrCompute(context.Background(), key, func(ctx context.Context) (*event.ParsedEvent, error) {
		return nil, fmt.Errorf("boom")
	})
	require.Error(t, err)

	got, _, err := c.GetOrCompute(context.Background(), key, func(ctx context.Context) (*event.ParsedEvent, error) {
		return parsed("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got.Fields[event.FieldTitle].Value)
}

func TestCache_Sweep(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	c.Put(NewKey("a", "", "", nil, "v1"), parsed("a"))
	c.Put(NewKey("b", "", "", nil, "v1"), parsed("b"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCache_Stats(t *testing.T) {
	c := New(time.Minute, 10)
	key := NewKey("a", "", "", nil, "v1")

	c.Get(key) // miss
	c.Put(key, parsed("a"))
	c.Get(key) // hit

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRatio, 1e-9)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "meeting tomorrow at 2pm", NormalizeText("  Meeting   TOMORROW\nat 2pm "))
	assert.Equal(t, "", NormalizeText("   "))
}
