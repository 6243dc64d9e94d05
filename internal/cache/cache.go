// Package cache provides the content-addressed result cache: TTL-bound,
// LRU-capped, with at-most-one computation in flight per key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JacoLabs/eventparse/internal/event"
)

// Key addresses one canonical computation. Identical inputs under the
// same engine version always produce the same key.
type Key string

// NewKey hashes the normalized text and processing parameters. The engine
// version participates so a version bump invalidates every prior entry.
func NewKey(text, timezone, locale string, fields []event.Field, engineVersion string) Key {
	h := sha256.New()
	h.Write([]byte(NormalizeText(text)))
	h.Write([]byte{0})
	h.Write([]byte(timezone))
	h.Write([]byte{0})
	h.Write([]byte(locale))
	h.Write([]byte{0})
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{1})
	}
	h.Write([]byte{0})
	h.Write([]byte(engineVersion))
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// NormalizeText produces the canonical form used for content addressing:
// lowercased with whitespace runs collapsed. Extraction itself always
// runs on the raw text so spans stay exact.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// entry is one cached parsed event.
type entry struct {
	result       *event.ParsedEvent
	expiresAt    time.Time
	createdAt    time.Time
	lastAccessed time.Time
	hitCount     int
}

// Stats is a point-in-time snapshot for the operational stats endpoint.
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
}

// Cache is a thread-safe in-memory result cache with TTL expiry and LRU
// eviction. Concurrent requests for the same key share one computation
// via singleflight.
type Cache struct {
	mu         sync.RWMutex
	entries    map[Key]*entry
	ttl        time.Duration
	maxEntries int

	group singleflight.Group

	hits      int64
	misses    int64
	evictions int64

	metrics *Metrics
}

// New creates a cache with the given TTL and entry bound.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[Key]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// SetMetrics attaches prometheus metrics. Optional.
func (c *Cache) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Get returns the cached event for the key, if present and unexpired.
func (c *Cache) Get(key Key) (*event.ParsedEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.recordMiss()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.evictions++
		if c.metrics != nil {
			c.metrics.Evictions.Inc()
			c.metrics.Size.Set(float64(len(c.entries)))
		}
		c.recordMiss()
		return nil, false
	}
	e.lastAccessed = time.Now()
	e.hitCount++
	c.hits++
	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}
	return e.result, true
}

// Put stores a parsed event, evicting the least recently used entry when
// the cache is full. Writes are idempotent for a fixed engine version, so
// concurrent writers racing on one key resolve to last-writer-wins.
func (c *Cache) Put(key Key, result *event.ParsedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	now := time.Now()
	c.entries[key] = &entry{
		result:       result,
		expiresAt:    now.Add(c.ttl),
		createdAt:    now,
		lastAccessed: now,
	}
	if c.metrics != nil {
		c.metrics.Size.Set(float64(len(c.entries)))
	}
}

// GetOrCompute returns the cached event for the key, or runs compute to
// produce and store it. Concurrent callers for an identical key join the
// in-flight computation instead of duplicating it.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (*event.ParsedEvent, error)) (*event.ParsedEvent, event.CacheStatus, error) {
	if cached, ok := c.Get(key); ok {
		return cached, event.CacheHit, nil
	}

	v, err, shared := c.group.Do(string(key), func() (interface{}, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, result)
		return result, nil
	})
	if err != nil {
		return nil, event.CacheMiss, err
	}
	status := event.CacheMiss
	if shared {
		status = event.CacheHit
	}
	return v.(*event.ParsedEvent), status, nil
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	if c.metrics != nil {
		c.metrics.Size.Set(float64(len(c.entries)))
	}
}

// Clear drops every entry, e.g. on an engine version bump.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
	if c.metrics != nil {
		c.metrics.Size.Set(0)
	}
}

// Sweep removes expired entries. Intended to run periodically from a
// background goroutine so expired entries don't linger unread.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.evictions += int64(removed)
		if c.metrics != nil {
			c.metrics.Evictions.Add(float64(removed))
			c.metrics.Size.Set(float64(len(c.entries)))
		}
	}
	return removed
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// evictLRU removes the least recently used entry. Caller holds the write
// lock.
func (c *Cache) evictLRU() {
	var oldestKey Key
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastAccessed.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.lastAccessed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.evictions++
		if c.metrics != nil {
			c.metrics.Evictions.Inc()
		}
	}
}

func (c *Cache) recordMiss() {
	c.misses++
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}
}
