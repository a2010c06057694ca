package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/briahnloo/source-of-truth/internal/logging"
)

// cacheEntry holds one cached embedding with its timestamps.
type cacheEntry struct {
	vec        []float32
	createdAt  time.Time // TTL is measured from here
	accessedAt time.Time // LRU eviction is ordered by this
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

// Cache is a content-addressed embedding cache with LRU + TTL eviction.
//
// An entry is a hit only while it is younger than the TTL, measured from
// creation time; hits refresh the access time, which is what makes the
// size-bound eviction LRU rather than FIFO. Expired entries are removed
// lazily on lookup. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time // injectable for tests
}

// evictFraction: when the cache overflows, the oldest 20% of entries by
// last access are dropped in one pass.
const evictFraction = 0.2

// NewCache creates an embedding cache with the given size bound and TTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 5000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// hashText returns the deterministic cache key for a text.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get looks up embeddings for the given texts. Returns one vector slot per
// text (nil on miss) and a parallel hit flag slice. Entries older than the
// TTL count as misses and are removed immediately.
func (c *Cache) Get(texts []string) ([][]float32, []bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	vecs := make([][]float32, len(texts))
	hits := make([]bool, len(texts))

	for i, text := range texts {
		key := hashText(text)
		entry, ok := c.entries[key]
		if !ok {
			c.misses++
			continue
		}
		if now.Sub(entry.createdAt) > c.ttl {
			// Lazy TTL eviction: found but stale is a miss.
			delete(c.entries, key)
			c.evictions++
			c.misses++
			continue
		}
		entry.accessedAt = now
		vecs[i] = entry.vec
		hits[i] = true
		c.hits++
	}

	return vecs, hits
}

// Put stores embeddings for the given texts, then enforces the size bound.
// Texts and vecs must be parallel; extra entries in either are ignored.
func (c *Cache) Put(texts []string, vecs [][]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := len(texts)
	if len(vecs) < n {
		n = len(vecs)
	}

	for i := 0; i < n; i++ {
		if len(vecs[i]) == 0 {
			continue
		}
		c.entries[hashText(texts[i])] = &cacheEntry{
			vec:        vecs[i],
			createdAt:  now,
			accessedAt: now,
		}
	}

	if len(c.entries) > c.maxSize {
		c.evictLRU()
	}
}

// evictLRU removes the oldest entries by last access time.
// Caller must hold the lock.
func (c *Cache) evictLRU() {
	type keyed struct {
		key        string
		accessedAt time.Time
	}

	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{k, e.accessedAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].accessedAt.Before(ordered[j].accessedAt)
	})

	drop := int(float64(len(ordered)) * evictFraction)
	if drop < 1 {
		drop = 1
	}
	for _, k := range ordered[:drop] {
		delete(c.entries, k.key)
		c.evictions++
	}

	logging.Debug("Embedding cache eviction pass", "dropped", drop, "size", len(c.entries))
}

// Stats returns current cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:      len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   rate,
	}
}

// Clear drops all entries and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// CachingEmbedder wraps a BatchEmbedder with a Cache so callers only pay
// for embedding computation on cache misses.
type CachingEmbedder struct {
	inner BatchEmbedder
	cache *Cache
}

// NewCachingEmbedder wraps an embedder with the given cache.
func NewCachingEmbedder(inner BatchEmbedder, cache *Cache) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: cache}
}

// Available reports whether the underlying embedder is reachable.
func (e *CachingEmbedder) Available() bool {
	return e.inner.Available()
}

// Embed returns a single embedding, served from cache when possible.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch fills cache hits first and only sends misses to the inner
// embedder. A cache miss is never an error; an inner embedder failure is.
func (e *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, hits := e.cache.Get(texts)

	var missTexts []string
	var missIdx []int
	for i, hit := range hits {
		if !hit {
			missTexts = append(missTexts, texts[i])
			missIdx = append(missIdx, i)
		}
	}

	if len(missTexts) == 0 {
		return vecs, nil
	}

	fresh, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		vecs[idx] = fresh[j]
	}
	e.cache.Put(missTexts, fresh)

	return vecs, nil
}
