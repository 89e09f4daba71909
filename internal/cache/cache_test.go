package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](2, time.Minute)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")

	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, true", v, ok)
	}

	// "b" is now least recently used and gets evicted
	c.Set(ctx, "c", "3")
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("Get(b) should miss after eviction")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, "x", 1)
	c.Set(ctx, "y", 2)

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "x"); ok {
		t.Error("Get(x) should miss after TTL")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	c.Set(ctx, "x", 1)
	c.Set(ctx, "y", 2)

	c.Delete(ctx, "x")
	if _, ok := c.Get(ctx, "x"); ok {
		t.Error("Get(x) should miss after Delete")
	}

	c.Clear(ctx)
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}
	c.Set(ctx, "z", 3)
	if v, ok := c.Get(ctx, "z"); !ok || v != 3 {
		t.Error("cache should be usable after Clear")
	}
}

func TestGenerational_RefusesStaleSet(t *testing.T) {
	ctx := context.Background()
	lru := NewLRUCache[int](10, time.Minute)
	g := NewGenerational[int](lru)

	gen := g.Generation()
	if !g.SetIfCurrent(ctx, "a", 1, gen) {
		t.Fatal("SetIfCurrent with the current generation should store")
	}

	stale := g.Generation()
	g.Clear(ctx)
	if g.SetIfCurrent(ctx, "a", 2, stale) {
		t.Error("SetIfCurrent after Clear should refuse")
	}
	if lru.Size() != 0 {
		t.Errorf("Size() = %d, want 0", lru.Size())
	}

	g.Set(ctx, "b", 3)
	if v, ok := g.Get(ctx, "b"); !ok || v != 3 {
		t.Errorf("Get(b) = %d, %v, want 3, true", v, ok)
	}
}

func TestManager_CleansRegisteredCaches(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set(ctx, "x", 1)

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after cleanup", c.Size())
	}
}

// TestRedisCache runs against a real server when TEST_REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer client.Close()

	type payload struct{ Total int64 }
	c := NewRedisCache[payload](client, "finbot-test:", time.Minute, nil)
	c.Clear(ctx)

	c.Set(ctx, "summary:all", payload{Total: 42})
	if v, ok := c.Get(ctx, "summary:all"); !ok || v.Total != 42 {
		t.Errorf("Get() = %+v, %v", v, ok)
	}
	c.Clear(ctx)
	if _, ok := c.Get(ctx, "summary:all"); ok {
		t.Error("Get() should miss after Clear")
	}
}
