package statuscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, ttl), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	if err := cache.SetStep(context.Background(), "order-1", "PAID"); err != nil {
		t.Fatalf("set: %v", err)
	}

	entry, err := cache.Step(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Step != "PAID" {
		t.Fatalf("step = %q, want PAID", entry.Step)
	}
	if entry.UpdatedAt.IsZero() {
		t.Fatal("missing update timestamp")
	}
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	if _, err := cache.Step(context.Background(), "order-absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
}

func TestCacheEntryExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Second)

	if err := cache.SetStep(context.Background(), "order-1", "RECEIVED"); err != nil {
		t.Fatalf("set: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := cache.Step(context.Background(), "order-1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss after expiry", err)
	}
}

func TestCacheOverwriteKeepsLatest(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	for _, step := range []string{"RECEIVED", "VALIDATED", "PAID"} {
		if err := cache.SetStep(context.Background(), "order-1", step); err != nil {
			t.Fatalf("set %s: %v", step, err)
		}
	}

	entry, err := cache.Step(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Step != "PAID" {
		t.Fatalf("step = %q, want the latest write", entry.Step)
	}
}

func TestNilCacheIsInert(t *testing.T) {
	var cache *Cache

	if err := cache.SetStep(context.Background(), "order-1", "PAID"); err != nil {
		t.Fatalf("nil cache set: %v", err)
	}
	if _, err := cache.Step(context.Background(), "order-1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("nil cache get = %v, want ErrMiss", err)
	}
}
