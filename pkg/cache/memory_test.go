package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()

	type payload struct {
		Symbol string  `json:"symbol"`
		Score  float64 `json:"score"`
	}
	in := payload{Symbol: "ES", Score: 0.42}
	if err := c.Set(ctx, "k", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out payload
	if err := c.Get(ctx, "k", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(10)
	var v int
	if err := c.Get(context.Background(), "absent", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()
	if err := c.Set(ctx, "k", 1, time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var v int
	if err := c.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()
	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Minute)

	if err := c.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var v int
	if err := c.Get(ctx, "a", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryCacheEvictsAtCapacity(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()
	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Hour)
	_ = c.Set(ctx, "c", 3, time.Hour)

	var v int
	if err := c.Get(ctx, "c", &v); err != nil {
		t.Fatalf("newest entry must survive eviction: %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("ohlc", "ES", 1000); got != "ohlc:ES:1000" {
		t.Fatalf("unexpected key %q", got)
	}
}
