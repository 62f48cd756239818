package health

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// PostgresCheck pings the catalog store's connection pool.
func PostgresCheck(pool *pgxpool.Pool) Check {
	return Check{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres ping: %w", err)
			}
			return nil
		},
	}
}

// RedisCheck pings the cache/queue-adjacent Redis client.
func RedisCheck(client *redis.Client) Check {
	return Check{
		Name: "redis",
		Check: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		},
	}
}

// ReachabilityCheck wraps an arbitrary reachability probe, such as a
// storage-profile vendor's head-bucket call or a secret backend's ping,
// under the named Check shape Prober consumes, since those concerns each
// have their own client types this package has no reason to depend on
// directly.
func ReachabilityCheck(name string, probe func(ctx context.Context) error) Check {
	return Check{Name: name, Check: probe}
}
