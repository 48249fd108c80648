package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
)

// Cache provides thread-safe in-memory caching with TTL for provider
// responses, so re-analyzing overlapping routes doesn't re-hit external
// quotas.
type Cache struct {
	entries map[string]*Entry
	mutex   sync.RWMutex
}

// Entry represents a cached item with metadata.
type Entry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Source    string    `json:"source"`
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Set stores data under key with the given TTL.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration, source string) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data for cache: %w", err)
	}

	now := time.Now()
	entry := &Entry{
		Key:       key,
		Data:      jsonData,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Source:    source,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry
	return nil
}

// Get retrieves data from cache if present and fresh.
func (c *Cache) Get(key string, result interface{}) (bool, error) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists || time.Now().After(entry.ExpiresAt) {
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, result); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return true, nil
}

// elevationKey buckets coordinates at ~1m resolution.
func elevationKey(p geo.Point) string {
	return fmt.Sprintf("elevation:%.5f,%.5f", p.Latitude, p.Longitude)
}

// SetElevation caches one point's elevation lookup result.
func (c *Cache) SetElevation(p geo.Point, elevation *float64, ttl time.Duration) error {
	return c.Set(elevationKey(p), elevation, ttl, "elevation")
}

// GetElevation retrieves a cached elevation. The middle return reports
// whether the cached lookup had data; the last whether a cache entry exists
// at all (a cached "no data" is still a hit).
func (c *Cache) GetElevation(p geo.Point) (float64, bool, bool) {
	var elevation *float64
	found, err := c.Get(elevationKey(p), &elevation)
	if err != nil || !found {
		return 0, false, false
	}
	if elevation == nil {
		return 0, false, true
	}
	return *elevation, true, true
}

// featureKey buckets coordinates at ~10m resolution; a features query a few
// meters over is the same query.
func featureKey(p geo.Point, radiusMeters float64) string {
	return fmt.Sprintf("features:%.4f,%.4f:%.0f", p.Latitude, p.Longitude, radiusMeters)
}

// SetNearbyFeatures caches a nearby-feature query result.
func (c *Cache) SetNearbyFeatures(p geo.Point, radiusMeters float64, features []blindspot.Feature, ttl time.Duration) error {
	return c.Set(featureKey(p, radiusMeters), features, ttl, "features")
}

// GetNearbyFeatures retrieves a cached nearby-feature query result.
func (c *Cache) GetNearbyFeatures(p geo.Point, radiusMeters float64) ([]blindspot.Feature, bool) {
	var features []blindspot.Feature
	found, err := c.Get(featureKey(p, radiusMeters), &features)
	if err != nil || !found {
		return nil, false
	}
	return features, true
}

// Delete removes an entry.
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*Entry)
}

// CleanupStale removes all expired entries and reports how many went.
func (c *Cache) CleanupStale() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	var removed int
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// StartPeriodicCleanup starts a goroutine that periodically evicts stale
// entries until ctx is cancelled.
func (c *Cache) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Cache cleanup: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupStale()
			}
		}
	}()
}
