package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

// WarehouseCache caches catalogstore.Warehouse rows so the hot path of
// resolving a warehouse on every request doesn't hit Postgres each time.
// Uses a JSON marshal/unmarshal pattern scoped to one entity type with a
// fixed prefix.
type WarehouseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWarehouseCache wraps client with a default entry lifetime. Entries
// expire after ttl; Invalidate drops one entry at once. The WarehouseRepo
// mutations (Rename/SetStatus/SetStorageProfile/Delete) do not call
// Invalidate themselves.
func NewWarehouseCache(client *redis.Client, ttl time.Duration) *WarehouseCache {
	return &WarehouseCache{client: client, ttl: ttl}
}

func (c *WarehouseCache) key(id ids.WarehouseID) string {
	return "warehouse:" + id.String()
}

func (c *WarehouseCache) Get(ctx context.Context, id ids.WarehouseID) (*catalogstore.Warehouse, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var w catalogstore.Warehouse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false
	}
	return &w, true
}

func (c *WarehouseCache) Set(ctx context.Context, w catalogstore.Warehouse) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("cache: marshaling warehouse: %w", err)
	}
	return c.client.Set(ctx, c.key(w.WarehouseID), data, c.ttl).Err()
}

func (c *WarehouseCache) Invalidate(ctx context.Context, id ids.WarehouseID) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
