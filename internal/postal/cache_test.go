package postal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewCache(rdb, ttl), mr
}

func TestCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	entry := &Result{
		PostalCode:   "01310-100",
		Street:       "Avenida Paulista",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "SP",
	}
	if err := cache.Put(ctx, "01310100", entry); err != nil {
		t.Fatalf("put: unexpected error: %v", err)
	}

	got, err := cache.Get(ctx, "01310100")
	if err != nil {
		t.Fatalf("get: unexpected error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected cache hit")
	}
	if got.Street != entry.Street || got.City != entry.City || got.State != entry.State {
		t.Fatalf("cached entry mismatch: %+v", got)
	}
}

func TestCache_MissOnUnknownCode(t *testing.T) {
	cache, _ := newTestCache(t, 0)

	got, err := cache.Get(context.Background(), "99999999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.Put(ctx, "01310100", &Result{Street: "Avenida Paulista"}); err != nil {
		t.Fatalf("put: unexpected error: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	got, err := cache.Get(ctx, "01310100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired entry to be a miss, got %+v", got)
	}
}

func TestCache_LastWriteWins(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	ctx := context.Background()

	if err := cache.Put(ctx, "01310100", &Result{Street: "first"}); err != nil {
		t.Fatalf("put: unexpected error: %v", err)
	}
	if err := cache.Put(ctx, "01310100", &Result{Street: "second"}); err != nil {
		t.Fatalf("put: unexpected error: %v", err)
	}

	got, err := cache.Get(ctx, "01310100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Street != "second" {
		t.Fatalf("expected last write to win, got %+v", got)
	}
}
