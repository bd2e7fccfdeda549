// Package cache keeps recent lookup responses in memory, keyed by domain.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/mailscout/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.LookupResponse
	createdAt time.Time
}

// Cache is a simple in-memory cache for lookup responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour).
func New(maxEntries int) *Cache {
	c := newCache(maxEntries)
	go c.cleanupLoop()
	return c
}

func newCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key generates a cache key from the domain. Case and surrounding space
// are ignored; "www." is not, since it changes the candidate URLs.
func Key(domain string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(domain))))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a copy of a cached response if it exists and is younger
// than maxAgeMs milliseconds. If maxAgeMs <= 0, no lookup is performed.
func (c *Cache) Get(key string, maxAgeMs int) (*models.LookupResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}

	resp := *e.response
	resp.Emails = slices.Clone(e.response.Emails)
	return &resp, true
}

// Set stores a response in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, resp *models.LookupResponse) {
	stored := *resp
	stored.Emails = slices.Clone(resp.Emails)
	stored.CacheStatus = ""

	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random, so this evicts an arbitrary entry.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  &stored,
		createdAt: c.now(),
	}
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evictOlderThan(c.now().Add(-1 * time.Hour))
	}
}

func (c *Cache) evictOlderThan(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
