// Package cache keeps recently built trajectories in memory.
//
// Entries are keyed by satellite and grid parameters and are tied to the TLE
// dataset they were built from: once the store holds a different dataset, the
// entry is never returned again and the background worker drops it.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
)

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration // entry lifetime (default: 10m); zero disables the cache
	MaxEntries int           // capacity; the oldest entry is evicted when full (default: 256)
}

// Key identifies one trajectory build.
type Key struct {
	NORADID  int
	Start    time.Time
	Step     time.Duration
	Duration time.Duration
	Policy   propagation.ErrorPolicy
}

// NewKey builds the cache key for a request.
func NewKey(noradID int, req propagation.Request) Key {
	return Key{
		NORADID:  noradID,
		Start:    req.Start.UTC(),
		Step:     req.Step,
		Duration: req.Duration,
		Policy:   req.Policy,
	}
}

type entry struct {
	traj        propagation.Trajectory
	dataset     *tle.Dataset
	generatedAt time.Time
}

// TrackCache is an in-memory trajectory cache. Safe for concurrent use by
// multiple goroutines.
type TrackCache struct {
	mu      sync.RWMutex
	entries map[Key]*entry

	config Config
	store  *tle.Store
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewTrackCache creates a cache for trajectories built from store's datasets.
func NewTrackCache(config Config, store *tle.Store, logger *slog.Logger) *TrackCache {
	if config.MaxEntries < 1 {
		config.MaxEntries = 256
	}
	logger.Info("track cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
	)
	return &TrackCache{
		entries: make(map[Key]*entry),
		config:  config,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether the cache stores anything.
func (c *TrackCache) Enabled() bool {
	return c != nil && c.config.TTL > 0
}

// Get returns the cached trajectory for k if it is fresh and was built from
// the current dataset. Callers must not modify the returned points.
func (c *TrackCache) Get(k Key) (propagation.Trajectory, bool) {
	if !c.Enabled() {
		return propagation.Trajectory{}, false
	}
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if ok && c.valid(e, c.store.Get()) {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return e.traj, true
	}
	c.misses.Add(1)
	metrics.IncCacheMisses()
	return propagation.Trajectory{}, false
}

// Put stores traj, built from the store's current dataset, under k.
func (c *TrackCache) Put(k Key, traj propagation.Trajectory) {
	if !c.Enabled() {
		return
	}
	ds := c.store.Get()
	if ds == nil {
		return
	}

	var evicted int
	c.mu.Lock()
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.config.MaxEntries {
		evicted = c.evictOldestLocked()
	}
	c.entries[k] = &entry{traj: traj, dataset: ds, generatedAt: c.now()}
	count := len(c.entries)
	c.mu.Unlock()

	c.recordEvictions(evicted)
	metrics.SetCacheEntries(count)
}

func (c *TrackCache) valid(e *entry, current *tle.Dataset) bool {
	return e.dataset == current && c.now().Sub(e.generatedAt) < c.config.TTL
}

// evictOldestLocked removes the least recently generated entry. Caller must
// hold mu.
func (c *TrackCache) evictOldestLocked() int {
	var (
		oldest Key
		at     time.Time
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.generatedAt.Before(at) {
			oldest, at, found = k, e.generatedAt, true
		}
	}
	if !found {
		return 0
	}
	delete(c.entries, oldest)
	return 1
}

// evictExpired removes expired entries and entries from replaced datasets.
func (c *TrackCache) evictExpired() int {
	current := c.store.Get()
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !c.valid(e, current) {
			delete(c.entries, k)
			removed++
		}
	}
	count := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.recordEvictions(removed)
		metrics.SetCacheEntries(count)
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

func (c *TrackCache) recordEvictions(n int) {
	if n == 0 {
		return
	}
	c.evictions.Add(int64(n))
	metrics.AddCacheEvictions(n)
}

// Start runs the eviction worker until ctx is done.
func (c *TrackCache) Start(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	interval := max(c.config.TTL/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-ctx.Done():
			c.logger.Info("track cache worker stopped")
			return
		}
	}
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns current cache statistics.
func (c *TrackCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
