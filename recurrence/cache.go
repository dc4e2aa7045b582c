package recurrence

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"
)

// CacheEntry is one memoized expansion.
type CacheEntry struct {
	Result     []instance
	Owner      string
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// RecurrenceCache memoizes entity expansions keyed by entity identity, entity version and
// the evaluated window.
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	owners          map[string]map[string]struct{}
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once

	hits   uint64
	misses uint64
}

// CacheConfig holds configuration for the recurrence cache.
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before cleanup
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache creates a cache and starts its cleanup loop. Call Close to stop it.
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		owners:          make(map[string]map[string]struct{}),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// generateCacheKey hashes everything an expansion depends on.
func generateCacheKey(owner string, version uint64, from, to time.Time) string {
	hasher := sha256.New()
	hasher.Write([]byte(owner))
	fmt.Fprintf(hasher, "|%d|", version)
	hasher.Write([]byte(from.UTC().Format(time.RFC3339Nano)))
	hasher.Write([]byte(to.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached expansion if it exists and hasn't expired.
func (c *RecurrenceCache) Get(key string) ([]instance, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	now := time.Now()
	if now.After(entry.ExpiresAt) {
		c.remove(key)
		c.misses++
		return nil, false
	}

	entry.AccessedAt = now
	c.hits++
	return entry.Result, true
}

// Set stores an expansion for owner.
func (c *RecurrenceCache) Set(owner, key string, result []instance) {
	now := time.Now()
	entry := &CacheEntry{
		Result:     result,
		Owner:      owner,
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry
	keys, ok := c.owners[owner]
	if !ok {
		keys = make(map[string]struct{})
		c.owners[owner] = keys
	}
	keys[key] = struct{}{}

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// Invalidate drops every entry stored for owner.
func (c *RecurrenceCache) Invalidate(owner string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys := c.owners[owner]
	for key := range keys {
		delete(c.entries, key)
	}
	delete(c.owners, owner)
	return len(keys)
}

// remove deletes key. Callers hold the write lock.
func (c *RecurrenceCache) remove(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	if keys, ok := c.owners[entry.Owner]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.owners, entry.Owner)
		}
	}
}

// cleanup removes expired entries and the least recently used ones while over the limit.
// Callers hold the write lock.
func (c *RecurrenceCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			c.remove(key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	keyAccessList := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	slices.SortFunc(keyAccessList, func(a, b keyAccess) int {
		return a.accessedAt.Compare(b.accessedAt)
	})

	entriesToRemove := len(c.entries) - c.maxEntries
	for i := 0; i < entriesToRemove && i < len(keyAccessList); i++ {
		c.remove(keyAccessList[i].key)
	}
}

func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache.
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.owners = make(map[string]map[string]struct{})
	c.mutex.Unlock()
}

// Stats returns cache statistics.
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
		Hits:           c.hits,
		Misses:         c.misses,
	}
}

// CacheStats provides information about cache performance.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           uint64
	Misses         uint64
}
