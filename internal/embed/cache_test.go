package embed

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeClock lets tests control cache time.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func vec(vals ...float32) []float32 { return vals }

func putOne(c *Cache, text string, v []float32) { c.Put([]string{text}, [][]float32{v}) }

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(10, time.Hour)

	putOne(c, "storm hits coast", vec(1, 2, 3))

	vecs, hits := c.Get([]string{"storm hits coast", "unseen text"})
	if !hits[0] {
		t.Error("expected hit for cached text")
	}
	if vecs[0] == nil || vecs[0][0] != 1 {
		t.Errorf("wrong vector returned: %v", vecs[0])
	}
	if hits[1] {
		t.Error("expected miss for unseen text")
	}
	if vecs[1] != nil {
		t.Errorf("miss slot should be nil, got %v", vecs[1])
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit / 1 miss", stats)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(10, 86400*time.Second)
	c.now = clock.now

	putOne(c, "a", vec(1))

	// One second past the TTL: must be a miss and must shrink the cache.
	clock.advance(86401 * time.Second)
	_, hits := c.Get([]string{"a"})
	if hits[0] {
		t.Error("entry past TTL reported as hit")
	}
	if size := c.Stats().Size; size != 0 {
		t.Errorf("expired entry not removed, size = %d", size)
	}
}

func TestCacheTTLMeasuredFromCreation(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(10, time.Hour)
	c.now = clock.now

	putOne(c, "a", vec(1))

	// Heavy access must not extend the lifetime.
	for i := 0; i < 10; i++ {
		clock.advance(10 * time.Minute)
		c.Get([]string{"a"})
	}

	_, hits := c.Get([]string{"a"})
	if hits[0] {
		t.Error("access-time refresh must not defeat creation-time TTL")
	}
}

func TestCacheLRUBound(t *testing.T) {
	const maxSize = 100
	c := NewCache(maxSize, time.Hour)

	for i := 0; i < maxSize+1000; i++ {
		putOne(c, fmt.Sprintf("text-%d", i), vec(float32(i)))
	}

	// Size must end at or below the bound, within one eviction batch.
	size := c.Stats().Size
	if size > maxSize {
		t.Errorf("cache size %d exceeds max %d", size, maxSize)
	}
	if size < maxSize-maxSize/5 {
		t.Errorf("cache over-evicted: size %d", size)
	}
}

func TestCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(5, time.Hour)
	c.now = clock.now

	for i := 0; i < 5; i++ {
		putOne(c, fmt.Sprintf("t%d", i), vec(float32(i)))
		clock.advance(time.Second)
	}

	// Touch t0 so it becomes the most recently used.
	c.Get([]string{"t0"})
	clock.advance(time.Second)

	// Overflow: t1 (oldest access) should go, t0 should survive.
	putOne(c, "t5", vec(5))

	_, hits := c.Get([]string{"t0", "t1"})
	if !hits[0] {
		t.Error("recently accessed entry was evicted")
	}
	if hits[1] {
		t.Error("least recently accessed entry survived eviction")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(10, time.Hour)
	putOne(c, "a", vec(1))
	c.Clear()

	if stats := c.Stats(); stats.Size != 0 || stats.Hits != 0 {
		t.Errorf("Clear left state behind: %+v", stats)
	}
}

// countingEmbedder records how many texts reached the real embedder.
type countingEmbedder struct {
	calls int
}

func (f *countingEmbedder) Available() bool { return true }

func (f *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls += len(texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = vec(float32(len(texts[i])), 1)
	}
	return out, nil
}

func TestCachingEmbedderOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	ce := NewCachingEmbedder(inner, NewCache(10, time.Hour))

	texts := []string{"alpha", "beta"}
	if _, err := ce.EmbedBatch(context.Background(), texts); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("first batch: inner calls = %d, want 2", inner.calls)
	}

	if _, err := ce.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("second batch: inner calls = %d, want 3 (only the miss)", inner.calls)
	}
}
