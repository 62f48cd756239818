// Package postgres implements catalogstore's Transactor and per-entity
// repos over a raw pgx connection pool: direct SQL, explicit connection
// pooling, no query builder.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/logging"
)

var log = logging.For("catalogstore/postgres")

// Store wraps a pgxpool.Pool and implements catalogstore.Transactor. All
// write transactions run SERIALIZABLE; a transaction-scoped advisory lock
// is acquired separately via AdvisoryLock by callers that need one.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Connection construction (DSN
// parsing, pool-size tuning from internal/config) lives at the call site;
// New takes a pool directly since cmd/catalogd already owns pool lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect is a convenience constructor: parse a DSN, open a pool, verify
// connectivity with Ping before returning.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalogstore/postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Tx is the concrete catalogstore.Tx this backend produces; repos type
// assert their catalogstore.Tx argument back to *Tx to reach the
// underlying pgx.Tx.
type Tx struct {
	pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error   { return t.Tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.Tx.Rollback(ctx) }

func (s *Store) BeginWrite(ctx context.Context) (catalogstore.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: begin write: %w", err)
	}
	return &Tx{Tx: tx}, nil
}

func (s *Store) BeginRead(ctx context.Context) (catalogstore.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: begin read: %w", err)
	}
	return &Tx{Tx: tx}, nil
}

// AdvisoryLock acquires a transaction-scoped Postgres advisory lock
// (pg_advisory_xact_lock) on key, released when tx commits or rolls back,
// to serialize concurrent service instances without a dedicated lock
// table. Migrations do not use it; they take a session-level lock of their
// own.
func AdvisoryLock(ctx context.Context, tx catalogstore.Tx, key int64) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}

func asTx(tx catalogstore.Tx) (*Tx, error) {
	pt, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("catalogstore/postgres: expected *postgres.Tx, got %T", tx)
	}
	return pt, nil
}
