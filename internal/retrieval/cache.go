package retrieval

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Cache is a TTL-bounded result cache for chunk retrievals. Entries are keyed
// by job, query, sorted candidate set, and limit, so sections sharing a source
// pool reuse each other's results while jobs stay isolated. Concurrent
// read/insert races are acceptable: recomputation is idempotent.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	chunks    []*domain.Chunk
	expiresAt time.Time
}

// NewCache creates a retrieval cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached chunks for a key, or nil if absent or expired.
func (c *Cache) Get(key string) []*domain.Chunk {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.chunks
}

// Set stores chunks under a key, evicting any expired entries it finds.
func (c *Cache) Set(key string, chunks []*domain.Chunk) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{chunks: chunks, expiresAt: now.Add(c.ttl)}
}

// EvictJob removes all entries belonging to a job.
func (c *Cache) EvictJob(jobID uuid.UUID) {
	prefix := jobID.String() + "|"

	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// cacheKey builds a deterministic key from the request parameters. Source IDs
// are sorted so call sites need not agree on candidate ordering.
func cacheKey(jobID uuid.UUID, query string, sourceIDs []uuid.UUID, limit int) string {
	ids := make([]string, len(sourceIDs))
	for i, id := range sourceIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString(jobID.String())
	sb.WriteString("|")
	sb.WriteString(query)
	sb.WriteString("|")
	sb.WriteString(strings.Join(ids, ","))
	sb.WriteString("|")
	sb.WriteString(strconv.Itoa(limit))
	return sb.String()
}
