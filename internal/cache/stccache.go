// Package cache provides the short-term-credential cache sitting in front
// of internal/storageprofile's credential vendors: SetCache/GetCache/
// DeleteCache style operations with a key prefix and JSON marshaling.
// Credential vending (an STS AssumeRole call, an azidentity token fetch) is
// slow and rate-limited upstream, so repeated requests for the same
// warehouse/location/principal within a credential's lifetime are served
// from Redis instead of re-vending, with singleflight collapsing concurrent
// misses for the same key into one upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// STCCache caches short-term credential payloads keyed by a fingerprint of
// the request that produced them.
type STCCache struct {
	client *redis.Client
	group  singleflight.Group
}

// New wraps an existing redis client rather than dialing its own, so the
// same connection can be shared with other Redis users such as
// WarehouseCache.
func New(client *redis.Client) *STCCache {
	return &STCCache{client: client}
}

// Fingerprint derives the cache key from the request shape (warehouse,
// location, profile configuration hash) and any principal-identifying
// material (session tags, the assuming principal's credential hash),
// matching the sha256(requestFingerprint, profileHash, credHash) scheme.
func Fingerprint(warehouseID, location, profileHash, credHash string) string {
	h := sha256.New()
	h.Write([]byte(warehouseID))
	h.Write([]byte{0})
	h.Write([]byte(location))
	h.Write([]byte{0})
	h.Write([]byte(profileHash))
	h.Write([]byte{0})
	h.Write([]byte(credHash))
	return "stc:" + hex.EncodeToString(h.Sum(nil))
}

// GetOrVend returns the cached credential payload for key, or calls vend
// exactly once across concurrent callers sharing the same key (via
// singleflight) when absent, caching the result for ttl capped at 1 hour.
// A short-term credential is never cached longer than an hour regardless
// of how long the backend says it's valid, so a revoked grant stops being
// served stale within a bounded window.
func (c *STCCache) GetOrVend(ctx context.Context, key string, ttl time.Duration, vend func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if cached, err := c.get(ctx, key); err == nil {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check after winning the singleflight race: another caller may
		// have populated the cache while we were waiting to be selected.
		if cached, err := c.get(ctx, key); err == nil {
			return cached, nil
		}
		payload, err := vend(ctx)
		if err != nil {
			return nil, err
		}
		if capped := cappedTTL(ttl); capped > 0 {
			if setErr := c.client.Set(ctx, key, []byte(payload), capped).Err(); setErr != nil {
				return payload, nil
			}
		}
		return payload, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: vending credential: %w", err)
	}
	return v.(json.RawMessage), nil
}

func (c *STCCache) get(ctx context.Context, key string) (json.RawMessage, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Invalidate removes a cached credential, used when a warehouse's storage
// profile or role assignment changes and previously vended credentials
// must stop being served from cache immediately.
func (c *STCCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func cappedTTL(ttl time.Duration) time.Duration {
	const maxTTL = time.Hour
	if ttl <= 0 {
		return 0
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}
