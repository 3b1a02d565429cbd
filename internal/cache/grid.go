// Package cache provides the TTL cache shared by the external signal services.
package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Config holds configuration for a Grid cache.
type Config struct {
	// Name labels log lines and stats (e.g. "weather").
	Name string

	// TTL is how long an entry is served without refetching (default: 5 minutes).
	TTL time.Duration

	// StaleIfErrorTTL is how long an entry may be served after a failed refresh (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often entries past the stale window are dropped (default: 5 minutes).
	CleanupInterval time.Duration

	// Recorder receives hit and miss events (optional).
	Recorder Recorder

	// Logger for cache operations.
	Logger zerolog.Logger
}

// Recorder is notified about cache lookups.
type Recorder interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// Grid is a keyed cache with TTL, stale-if-error and single-flight refills.
// Keys are usually produced by GridKey so nearby points share an entry.
type Grid[V any] struct {
	name            string
	ttl             time.Duration
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration
	recorder        Recorder
	logger          zerolog.Logger

	flight singleflight.Group

	mu          sync.RWMutex
	entries     map[string]*entry[V]
	lastCleanup time.Time
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
	expiresAt time.Time
}

// NewGrid creates a Grid cache.
func NewGrid[V any](cfg Config) *Grid[V] {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &Grid[V]{
		name:            cfg.Name,
		ttl:             ttl,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		recorder:        cfg.Recorder,
		logger:          cfg.Logger,
		entries:         make(map[string]*entry[V]),
	}
}

// GetOrFetch returns the cached value for key or calls fetch to fill it.
// When fetch fails and an entry younger than the stale window exists, the
// stale value is returned instead of the error.
//
// Concurrent misses on the same key share one fetch. Misses on different
// keys fetch in parallel. A caller whose ctx ends stops waiting; the shared
// fetch keeps running so the entry is still filled for later callers.
func (g *Grid[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := g.fresh(key); ok {
		g.hit()
		return v, nil
	}

	ch := g.flight.DoChan(key, func() (any, error) {
		// A flight for this key may have finished between our lookup and DoChan.
		if v, ok := g.fresh(key); ok {
			return v, nil
		}
		g.miss()
		return g.refill(context.WithoutCancel(ctx), key, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// fresh returns the entry for key if it has not expired.
func (g *Grid[V]) fresh(key string) (V, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if e, ok := g.entries[key]; ok && time.Now().Before(e.expiresAt) {
		return e.value, true
	}
	var zero V
	return zero, false
}

// refill calls fetch without holding mu and stores the result.
func (g *Grid[V]) refill(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	value, err := fetch(ctx)
	if err != nil {
		g.mu.RLock()
		e, ok := g.entries[key]
		g.mu.RUnlock()

		if ok && time.Now().Before(e.fetchedAt.Add(g.staleIfErrorTTL)) {
			g.logger.Warn().
				Err(err).
				Str("cache", g.name).
				Str("cache_key", key).
				Time("fetched_at", e.fetchedAt).
				Msg("serving stale entry after fetch error")
			return e.value, nil
		}
		var zero V
		return zero, err
	}

	now := time.Now()
	g.mu.Lock()
	g.entries[key] = &entry[V]{
		value:     value,
		fetchedAt: now,
		expiresAt: now.Add(g.ttl),
	}
	g.cleanupLocked(now)
	g.mu.Unlock()

	return value, nil
}

// cleanupLocked drops entries past the stale window. Caller holds mu.
func (g *Grid[V]) cleanupLocked(now time.Time) {
	if now.Sub(g.lastCleanup) < g.cleanupInterval {
		return
	}
	g.lastCleanup = now

	expired := 0
	for key, e := range g.entries {
		if now.After(e.fetchedAt.Add(g.staleIfErrorTTL)) {
			delete(g.entries, key)
			expired++
		}
	}

	if expired > 0 {
		g.logger.Debug().
			Str("cache", g.name).
			Int("expired_entries", expired).
			Msg("cleaned up expired cache entries")
	}
}

// Invalidate clears all entries.
func (g *Grid[V]) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[string]*entry[V])
}

// Stats contains cache statistics.
type Stats struct {
	Name         string
	TotalEntries int
	FreshEntries int
	StaleEntries int
}

// Stats returns a snapshot of cache occupancy.
func (g *Grid[V]) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := time.Now()
	stats := Stats{Name: g.name, TotalEntries: len(g.entries)}
	for _, e := range g.entries {
		switch {
		case now.Before(e.expiresAt):
			stats.FreshEntries++
		case now.Before(e.fetchedAt.Add(g.staleIfErrorTTL)):
			stats.StaleEntries++
		}
	}
	return stats
}

func (g *Grid[V]) hit() {
	if g.recorder != nil {
		g.recorder.RecordCacheHit(g.name, "get")
	}
}

func (g *Grid[V]) miss() {
	if g.recorder != nil {
		g.recorder.RecordCacheMiss(g.name, "get")
	}
}

// GridKey quantizes a coordinate to a grid cell of size degrees.
func GridKey(lat, lon, size float64) string {
	gridLat := math.Floor(lat/size) * size
	gridLon := math.Floor(lon/size) * size
	return fmt.Sprintf("%.3f:%.3f", gridLat, gridLon)
}
