package postgres

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
)

type ServerRepo struct{}

func NewServerRepo() ServerRepo { return ServerRepo{} }

func (ServerRepo) Get(ctx context.Context, tx catalogstore.Tx) (*catalogstore.Server, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	var s catalogstore.Server
	row := pt.QueryRow(ctx, `SELECT server_id, open_for_bootstrap, terms_accepted FROM server LIMIT 1`)
	if err := row.Scan(&s.ServerID, &s.OpenForBootstrap, &s.TermsAccepted); err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get server: %w", err)
	}
	return &s, nil
}

// Bootstrap inserts the singleton row; a unique singleton column enforces
// the zero-or-one invariant at the database level, so a second call fails
// the insert. Any insert error is returned as icebergerr.TupleAlreadyExists
// rather than this repo re-deriving "already bootstrapped" with a read.
func (ServerRepo) Bootstrap(ctx context.Context, tx catalogstore.Tx, s catalogstore.Server) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO server (server_id, open_for_bootstrap, terms_accepted)
		VALUES ($1, $2, $3)
	`, s.ServerID, s.OpenForBootstrap, s.TermsAccepted)
	if err != nil {
		return icebergerr.TupleAlreadyExists("server already bootstrapped: " + err.Error())
	}
	return nil
}
