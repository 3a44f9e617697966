package foresight

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fleetwatch-backend/internal/models"
)

// Fetcher produces a snapshot for one fleet
type Fetcher interface {
	Fetch(ctx context.Context, fleet models.Fleet) models.Snapshot
}

// SnapshotCache memoizes successful snapshots per fleet for a short TTL so that
// dashboards opened by many viewers share one upstream call per refresh.
// Fallback snapshots are never cached so the next cycle retries.
type SnapshotCache struct {
	fetcher Fetcher
	cache   map[string]*cacheEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	bound   func() time.Duration
	now     func() time.Time
	group   singleflight.Group
	stats   CacheStats
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	snapshot  models.Snapshot
	createdAt time.Time
	hitCount  int
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Fallbacks int64
	mutex     sync.RWMutex
}

// NewSnapshotCache wraps fetcher with a TTL cache. A ttl <= 0 disables caching.
func NewSnapshotCache(fetcher Fetcher, ttl time.Duration) *SnapshotCache {
	return newSnapshotCache(fetcher, ttl, time.Now)
}

func newSnapshotCache(fetcher Fetcher, ttl time.Duration, now func() time.Time) *SnapshotCache {
	c := &SnapshotCache{
		fetcher: fetcher,
		cache:   make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     now,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go c.cleanupExpired(ttl * 10)
	}

	return c
}

// BoundTTL caps the TTL at half of the period returned by bound, so a loop
// that fetches once per period never reads the entry written by its previous
// iteration.
func (c *SnapshotCache) BoundTTL(bound func() time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.bound = bound
}

// effectiveTTL must be called with c.mutex held
func (c *SnapshotCache) effectiveTTL() time.Duration {
	ttl := c.ttl
	if c.bound != nil {
		if limit := c.bound() / 2; limit < ttl {
			ttl = limit
		}
	}
	return ttl
}

// Fetch returns the cached snapshot for the fleet or fetches a new one.
// Concurrent misses for the same fleet collapse into a single upstream call.
func (c *SnapshotCache) Fetch(ctx context.Context, fleet models.Fleet) models.Snapshot {
	if snap, ok := c.get(fleet.ID); ok {
		return snap
	}

	v, _, _ := c.group.Do(fleet.ID, func() (interface{}, error) {
		if snap, ok := c.peek(fleet.ID); ok {
			return snap, nil
		}
		// entries age from the request, not the response
		requestedAt := c.now()
		snap := c.fetcher.Fetch(ctx, fleet)
		if snap.Fallback {
			c.recordFallback()
			return snap, nil
		}
		c.set(fleet.ID, snap, requestedAt)
		return snap, nil
	})
	return v.(models.Snapshot)
}

func (c *SnapshotCache) get(fleetID string) (models.Snapshot, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ttl := c.effectiveTTL()
	if ttl <= 0 {
		c.recordMiss()
		return models.Snapshot{}, false
	}

	entry, found := c.cache[fleetID]
	if !found {
		c.recordMiss()
		return models.Snapshot{}, false
	}
	if c.now().Sub(entry.createdAt) >= ttl {
		delete(c.cache, fleetID)
		c.recordMiss()
		c.recordEviction()
		return models.Snapshot{}, false
	}

	entry.hitCount++
	c.recordHit()
	return entry.snapshot, true
}

// peek reads a fresh entry without touching stats
func (c *SnapshotCache) peek(fleetID string) (models.Snapshot, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, found := c.cache[fleetID]
	if !found || c.now().Sub(entry.createdAt) >= c.effectiveTTL() {
		return models.Snapshot{}, false
	}
	return entry.snapshot, true
}

func (c *SnapshotCache) set(fleetID string, snap models.Snapshot, createdAt time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.effectiveTTL() <= 0 {
		return
	}

	c.cache[fleetID] = &cacheEntry{
		snapshot:  snap,
		createdAt: createdAt,
	}
}

// Invalidate drops the cached snapshot for one fleet
func (c *SnapshotCache) Invalidate(fleetID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.cache[fleetID]; ok {
		delete(c.cache, fleetID)
		c.recordEviction()
	}
}

// InvalidateAll drops every cached snapshot
func (c *SnapshotCache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key := range c.cache {
		delete(c.cache, key)
		c.recordEviction()
	}
	log.Printf("🗑️  Snapshot cache cleared")
}

// Close stops the cleanup goroutine
func (c *SnapshotCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanupExpired periodically removes expired entries
func (c *SnapshotCache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := c.now()
			ttl := c.effectiveTTL()
			for key, entry := range c.cache {
				if now.Sub(entry.createdAt) >= ttl {
					delete(c.cache, key)
					c.recordEviction()
				}
			}
			c.mutex.Unlock()
		}
	}
}

func (c *SnapshotCache) recordHit() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Hits++
}

func (c *SnapshotCache) recordMiss() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Misses++
}

func (c *SnapshotCache) recordEviction() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Evictions++
}

func (c *SnapshotCache) recordFallback() {
	c.stats.mutex.Lock()
	defer c.stats.mutex.Unlock()
	c.stats.Fallbacks++
}

// GetStats returns cache statistics
func (c *SnapshotCache) GetStats() map[string]interface{} {
	c.mutex.RLock()
	cacheSize := len(c.cache)
	ttl := c.effectiveTTL()
	c.mutex.RUnlock()

	c.stats.mutex.RLock()
	defer c.stats.mutex.RUnlock()

	hitRate := 0.0
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		hitRate = float64(c.stats.Hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"cache_size":  cacheSize,
		"hits":        c.stats.Hits,
		"misses":      c.stats.Misses,
		"hit_rate":    fmt.Sprintf("%.2f%%", hitRate),
		"evictions":   c.stats.Evictions,
		"fallbacks":   c.stats.Fallbacks,
		"ttl_seconds": ttl.Seconds(),
	}
}
