package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoaderCache_Get_miss_then_hit(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, 0, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, hit, err := c.GetWithStats(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if hit {
		t.Error("expected miss")
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d", loads.Load())
	}

	v, hit, err = c.GetWithStats(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if !hit {
		t.Error("expected hit")
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d", loads.Load())
	}
}

func TestLoaderCache_Get_singleflight(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, int](10, 0, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	var gate sync.WaitGroup
	gate.Add(1)

	var arrived atomic.Int32
	//nolint:unparam // load always returns nil error for this test.
	load := func(_ context.Context, _ string) (int, error) {
		loads.Add(1)

		return 42, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			if arrived.Add(1) == 10 {
				gate.Done()
			}

			gate.Wait()

			val, _, err := c.GetWithStats(ctx, "x", load)
			if err != nil {
				t.Error(err)

				return
			}

			if val != 42 {
				t.Errorf("got %d", val)
			}
		})
	}

	wg.Wait()

	// Callers that overlap share one load; scheduling may let some miss the window.
	if n := loads.Load(); n < 1 || n > 10 {
		t.Errorf("expected 1–10 loads (singleflight coalescing), got %d", n)
	}
}

func TestLoaderCache_Invalidate(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, 0, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	_, _ = c.Get(ctx, "a", load)
	_, _ = c.Get(ctx, "b", load)

	c.Invalidate("a")

	_, hit, _ := c.GetWithStats(ctx, "a", load)
	if hit {
		t.Error("expected miss after Invalidate")
	}

	_, hit, _ = c.GetWithStats(ctx, "b", load)
	if !hit {
		t.Error("other keys should stay cached")
	}

	if n := loads.Load(); n != 3 {
		t.Errorf("loads = %d, want 3", n)
	}
}

func TestLoaderCache_Get_load_error(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, 0, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	loadErr := context.DeadlineExceeded
	load := func(_ context.Context, _ string) (string, error) {
		return "", loadErr
	}

	_, err = c.Get(ctx, "a", load)
	if !errors.Is(err, loadErr) {
		t.Errorf("got err %v", err)
	}

	_, hit, _ := c.GetWithStats(ctx, "a", func(_ context.Context, _ string) (string, error) { return "ok", nil })
	if hit {
		t.Error("failed load should not be cached")
	}
}

func TestLoaderCache_expires_after_ttl(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, 20*time.Millisecond, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	_, _ = c.Get(ctx, "pool", load)

	_, hit, _ := c.GetWithStats(ctx, "pool", load)
	if !hit {
		t.Error("expected hit before ttl")
	}

	time.Sleep(50 * time.Millisecond)

	_, hit, _ = c.GetWithStats(ctx, "pool", load)
	if hit {
		t.Error("expected miss after ttl")
	}

	if loads.Load() != 2 {
		t.Errorf("loads = %d", loads.Load())
	}
}

func TestNewLoaderCache_invalid_size(t *testing.T) {
	_, err := NewLoaderCache[string, string](0, 0, func(s string) string { return s })
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("got err %v", err)
	}
}
