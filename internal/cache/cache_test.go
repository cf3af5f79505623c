package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestCache(maxSize int) (*Cache[string, string], *time.Time) {
	c := New[string, string](Options{
		MaxSize:     maxSize,
		DefaultTTL:  time.Minute,
		StaleWindow: 2 * time.Minute,
		Version:     "v1",
	})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	c.SetClock(func() time.Time { return *clock })
	return c, clock
}

func TestCacheFreshness(t *testing.T) {
	t.Run("FreshHit", func(t *testing.T) {
		c, _ := newTestCache(10)
		c.Set("k", "v")

		got, ok := c.Get("k")
		if !ok {
			t.Fatal("Expected hit for fresh entry")
		}
		if got != "v" {
			t.Errorf("Expected v, got %s", got)
		}
	})

	t.Run("StaleServedInsideWindow", func(t *testing.T) {
		c, clock := newTestCache(10)
		c.Set("k", "v")

		// Past TTL but inside the stale window
		*clock = clock.Add(90 * time.Second)
		got, ok := c.Get("k")
		if !ok {
			t.Fatal("Expected stale entry to be served")
		}
		if got != "v" {
			t.Errorf("Expected v, got %s", got)
		}
	})

	t.Run("ExpiredPastStaleWindow", func(t *testing.T) {
		c, clock := newTestCache(10)
		c.Set("k", "v")

		*clock = clock.Add(4 * time.Minute)
		if _, ok := c.Get("k"); ok {
			t.Error("Expected miss past the stale window")
		}
	})

	t.Run("VersionMismatchIsExpired", func(t *testing.T) {
		c, _ := newTestCache(10)
		c.Set("k", "v")
		c.SetVersion("v2")

		if _, ok := c.Get("k"); ok {
			t.Error("Expected entry written under v1 to miss after version bump")
		}
	})
}

func TestCacheGetOrLoad(t *testing.T) {
	t.Run("MissCallsLoaderSynchronously", func(t *testing.T) {
		c, _ := newTestCache(10)

		calls := 0
		got, loaded, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (string, error) {
			calls++
			return "loaded", nil
		})
		if err != nil {
			t.Fatalf("GetOrLoad failed: %v", err)
		}
		if got != "loaded" {
			t.Errorf("Expected loaded, got %s", got)
		}
		if !loaded {
			t.Error("Miss must report a synchronous load")
		}
		if calls != 1 {
			t.Errorf("Expected 1 loader call, got %d", calls)
		}

		// Now cached
		if got, ok := c.Get("k"); !ok || got != "loaded" {
			t.Error("Expected loaded value to be cached")
		}
	})

	t.Run("FreshHitSkipsLoader", func(t *testing.T) {
		c, _ := newTestCache(10)
		c.Set("k", "cached")

		got, loaded, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (string, error) {
			t.Error("Loader should not run on a fresh hit")
			return "", nil
		})
		if err != nil {
			t.Fatalf("GetOrLoad failed: %v", err)
		}
		if got != "cached" {
			t.Errorf("Expected cached, got %s", got)
		}
		if loaded {
			t.Error("Fresh hit must not report a synchronous load")
		}
	})

	t.Run("LoaderErrorPropagatesAndNothingCached", func(t *testing.T) {
		c, _ := newTestCache(10)

		wantErr := errors.New("source down")
		_, _, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (string, error) {
			return "", wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("Expected loader error, got %v", err)
		}
		if _, ok := c.Get("k"); ok {
			t.Error("Failed load must not populate the cache")
		}
	})

	t.Run("StaleHitReturnsImmediatelyAndRevalidates", func(t *testing.T) {
		c, clock := newTestCache(10)
		c.Set("k", "old")
		*clock = clock.Add(90 * time.Second)

		reloaded := make(chan struct{})
		got, loaded, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (string, error) {
			defer close(reloaded)
			return "new", nil
		})
		if err != nil {
			t.Fatalf("GetOrLoad failed: %v", err)
		}
		if got != "old" {
			t.Errorf("Stale hit must return the cached value, got %s", got)
		}
		if loaded {
			t.Error("Stale hit must not report a synchronous load")
		}

		select {
		case <-reloaded:
		case <-time.After(2 * time.Second):
			t.Fatal("Background revalidation never ran")
		}

		// Wait for the refreshed value to land
		deadline := time.Now().Add(2 * time.Second)
		for {
			if got, ok := c.Get("k"); ok && got == "new" {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("Refreshed value never stored")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	t.Run("SingleRevalidationPerKey", func(t *testing.T) {
		c, clock := newTestCache(10)
		c.Set("k", "old")
		*clock = clock.Add(90 * time.Second)

		var mu sync.Mutex
		calls := 0
		block := make(chan struct{})
		loader := func(ctx context.Context) (string, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-block
			return "new", nil
		}

		for i := 0; i < 5; i++ {
			if _, _, err := c.GetOrLoad(context.Background(), "k", loader); err != nil {
				t.Fatalf("GetOrLoad failed: %v", err)
			}
		}
		close(block)

		deadline := time.Now().Add(2 * time.Second)
		for {
			mu.Lock()
			n := calls
			mu.Unlock()
			if n >= 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("Revalidation never started")
			}
			time.Sleep(5 * time.Millisecond)
		}

		mu.Lock()
		defer mu.Unlock()
		if calls != 1 {
			t.Errorf("Expected exactly 1 in-flight revalidation, got %d", calls)
		}
	})

	t.Run("FailedRevalidationLeavesStaleEntry", func(t *testing.T) {
		c, clock := newTestCache(10)
		c.Set("k", "old")
		*clock = clock.Add(90 * time.Second)

		failed := make(chan struct{})
		got, _, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (string, error) {
			defer close(failed)
			return "", errors.New("still down")
		})
		if err != nil || got != "old" {
			t.Fatalf("Expected stale value without error, got %q, %v", got, err)
		}
		<-failed

		// Give the revalidation goroutine time to (incorrectly) overwrite
		time.Sleep(20 * time.Millisecond)
		if got, ok := c.Get("k"); !ok || got != "old" {
			t.Error("Failed reload must leave the stale entry in place")
		}
	})
}

func TestCacheEviction(t *testing.T) {
	t.Run("SizeBoundHolds", func(t *testing.T) {
		c, _ := newTestCache(3)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Set("c", "3")
		c.Set("d", "4")

		if c.Len() != 3 {
			t.Fatalf("Expected 3 entries after eviction, got %d", c.Len())
		}
		if _, ok := c.Get("a"); ok {
			t.Error("Oldest-written key should have been evicted first")
		}
		if _, ok := c.Get("d"); !ok {
			t.Error("Newest key must survive eviction")
		}
	})

	t.Run("OverwriteDoesNotEvictByStaleRef", func(t *testing.T) {
		c, _ := newTestCache(2)
		c.Set("a", "1")
		c.Set("a", "1b") // overwrite leaves a stale order ref for "a"
		c.Set("b", "2")
		c.Set("c", "3")

		// "a" has the oldest live write after its overwrite, so it goes
		if _, ok := c.Get("a"); ok {
			t.Error("Expected a to be evicted")
		}
		if c.Len() != 2 {
			t.Errorf("Expected 2 entries, got %d", c.Len())
		}
		for _, k := range []string{"b", "c"} {
			if _, ok := c.Get(k); !ok {
				t.Errorf("Expected %s to survive", k)
			}
		}
	})

	t.Run("EvictionIsWriteOrderNotRecency", func(t *testing.T) {
		c, _ := newTestCache(2)
		c.Set("a", "1")
		c.Set("b", "2")

		// Touch "a" repeatedly; FIFO ignores reads
		for i := 0; i < 10; i++ {
			c.Get("a")
		}
		c.Set("c", "3")

		if _, ok := c.Get("a"); ok {
			t.Error("Read-hot key must still be evicted first under write-order eviction")
		}
		if _, ok := c.Get("b"); !ok {
			t.Error("Expected b to survive")
		}
	})
}

func TestCacheInvalidation(t *testing.T) {
	t.Run("InvalidateMatching", func(t *testing.T) {
		c, _ := newTestCache(10)
		c.Set("tiktok:user:u1:items:30", "a")
		c.Set("tiktok:user:u1:items:7", "b")
		c.Set("tiktok:user:u2:items:30", "c")

		removed := c.InvalidateMatching(func(key string) bool {
			return len(key) >= 15 && key[:15] == "tiktok:user:u1:"
		})
		if removed != 2 {
			t.Fatalf("Expected 2 removed, got %d", removed)
		}
		if _, ok := c.Get("tiktok:user:u2:items:30"); !ok {
			t.Error("Unrelated key must survive invalidation")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		c, _ := newTestCache(10)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Clear()

		if c.Len() != 0 {
			t.Errorf("Expected empty cache, got %d entries", c.Len())
		}
	})
}

func TestCacheObserver(t *testing.T) {
	c, _ := newTestCache(10)

	hits, misses := 0, 0
	c.SetObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	c.Get("missing")
	c.Set("k", "v")
	c.Get("k")
	c.Get("k")

	if hits != 2 || misses != 1 {
		t.Errorf("Expected 2 hits and 1 miss, got %d/%d", hits, misses)
	}
}
