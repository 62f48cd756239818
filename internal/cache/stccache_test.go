package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *STCCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestGetOrVendCachesResult(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := Fingerprint("wh-1", "s3://bucket/ns/tbl", "profile-hash", "cred-hash")

	var calls int32
	vend := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return json.RawMessage(`{"access_key":"AKIA"}`), nil
	}

	first, err := c.GetOrVend(ctx, key, time.Minute, vend)
	if err != nil {
		t.Fatalf("GetOrVend: %v", err)
	}
	second, err := c.GetOrVend(ctx, key, time.Minute, vend)
	if err != nil {
		t.Fatalf("GetOrVend: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("expected identical cached payloads, got %s vs %s", first, second)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected vend called once, got %d", got)
	}
}

func TestInvalidateForcesRevend(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := Fingerprint("wh-1", "s3://bucket/ns/tbl", "profile-hash", "cred-hash")

	var calls int32
	vend := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return json.RawMessage(`{"access_key":"AKIA"}`), nil
	}

	if _, err := c.GetOrVend(ctx, key, time.Minute, vend); err != nil {
		t.Fatalf("GetOrVend: %v", err)
	}
	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.GetOrVend(ctx, key, time.Minute, vend); err != nil {
		t.Fatalf("GetOrVend: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected vend called twice after invalidate, got %d", got)
	}
}

func TestCappedTTLNeverExceedsOneHour(t *testing.T) {
	if got := cappedTTL(2 * time.Hour); got != time.Hour {
		t.Errorf("cappedTTL(2h) = %v, want %v", got, time.Hour)
	}
	if got := cappedTTL(10 * time.Minute); got != 10*time.Minute {
		t.Errorf("cappedTTL(10m) = %v, want unchanged", got)
	}
	if got := cappedTTL(0); got != 0 {
		t.Errorf("cappedTTL(0) = %v, want 0", got)
	}
}
