// Package cache keeps compiled statements so repeated queries skip
// translation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
)

// Stats is a snapshot of cache counters. HitRate is a percentage.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

type entry struct {
	stmt      *domain.PreparedStatement
	expiresAt time.Time
}

// StatementCache is a bounded LRU of compiled statements with an optional
// TTL. Entries are keyed by dialect and query fingerprint, and every hit
// returns a fresh unconsumed copy.
type StatementCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, entry]
	maxSize int
	ttl     time.Duration
	stats   Stats
	now     func() time.Time
}

// New creates a cache holding at most maxSize statements. A ttl of zero
// keeps entries until they are evicted.
func New(maxSize int, ttl time.Duration) *StatementCache {
	maxSize = max(maxSize, 1)
	entries, _ := lru.New[string, entry](maxSize) // only fails for size <= 0
	return &StatementCache{
		entries: entries,
		maxSize: maxSize,
		ttl:     ttl,
		stats:   Stats{MaxSize: maxSize},
		now:     time.Now,
	}
}

// Key generates the cache key of q compiled for d.
func Key(d dialect.Name, q *domain.Query) string {
	sum := sha256.Sum256([]byte(q.Fingerprint()))
	return string(d) + ":" + q.Model + ":" + hex.EncodeToString(sum[:])
}

// Get returns an unconsumed copy of the cached statement.
func (c *StatementCache) Get(key string) (*domain.PreparedStatement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if ok && !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.stmt.Clone(), true
}

// Put stores a copy of stmt, replacing any entry under key.
func (c *StatementCache) Put(key string, stmt *domain.PreparedStatement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{stmt: stmt.Clone()}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	if c.entries.Add(key, e) {
		c.stats.Evictions++
	}
}

// Clear drops every entry and resets the counters.
func (c *StatementCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.stats = Stats{MaxSize: c.maxSize}
}

// GetStats returns cache statistics.
func (c *StatementCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.entries.Len()
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}
