// Package migrations applies the catalog's schema in versioned, numbered
// SQL steps, serialized across concurrent service instances by a Postgres
// advisory lock.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sql/*.sql
var files embed.FS

// schemaLockKey is an arbitrary constant both used as the pg_advisory_lock
// key for every service instance racing to apply migrations at startup.
const schemaLockKey = 891200110

// ApplyPending runs every not-yet-applied migration in sql/, in numeric
// filename order, inside the advisory lock so a rolling deploy's several
// instances serialize instead of racing on DDL.
func ApplyPending(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("migrations: acquire advisory lock: %w", err)
	}
	defer conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, schemaLockKey)

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("migrations: create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("migrations: read applied versions: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("migrations: scan applied version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	entries, err := files.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("migrations: read embedded sql dir: %w", err)
	}

	type step struct {
		version int
		name    string
	}
	var steps []step
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		numPart := strings.SplitN(e.Name(), "_", 2)[0]
		v, err := strconv.Atoi(numPart)
		if err != nil {
			return fmt.Errorf("migrations: %s has non-numeric version prefix: %w", e.Name(), err)
		}
		steps = append(steps, step{version: v, name: e.Name()})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })

	for _, s := range steps {
		if applied[s.version] {
			continue
		}
		sql, err := files.ReadFile("sql/" + s.name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", s.name, err)
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("migrations: begin tx for %s: %w", s.name, err)
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("migrations: apply %s: %w", s.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, s.version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("migrations: record %s: %w", s.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("migrations: commit %s: %w", s.name, err)
		}
	}
	return nil
}
