// Package bootstrap implements the one-shot server bootstrap operation:
// writing the singleton server row exactly once. Any second call returns
// a 409 conflict.
package bootstrap

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/logging"
)

var log = logging.For("bootstrap")

// Input is what the bootstrap endpoint hands down after authenticating
// the operator performing first-run setup.
type Input struct {
	TermsAccepted bool
	Operator      string
}

// Bootstrap writes the singleton server row. Called a second time (on any
// deployment, by any operator), the underlying ServerRepo.Bootstrap
// returns a conflict *icebergerr.CatalogError the caller maps straight to
// an HTTP 409. Bootstrap itself performs no existence pre-check, so the
// single INSERT is the only source of truth and there's no check-then-act
// race between concurrent first-run attempts.
func Bootstrap(ctx context.Context, txr catalogstore.Transactor, servers catalogstore.ServerRepo, input Input) (*catalogstore.Server, error) {
	if !input.TermsAccepted {
		return nil, icebergerr.New(icebergerr.KindInvalidUpdate, "terms of service must be accepted to bootstrap the server")
	}

	tx, err := txr.BeginWrite(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	server := catalogstore.Server{
		ServerID:         ids.NewServerID(),
		OpenForBootstrap: false,
		TermsAccepted:    input.TermsAccepted,
	}
	if err := servers.Bootstrap(ctx, tx, server); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: commit: %w", err)
	}

	log.WithField("server_id", server.ServerID).WithField("operator", input.Operator).Info("server bootstrapped")
	return &server, nil
}

// Status reports whether the server has completed bootstrap, for a health
// or readiness probe to gate on before authentication is wired in.
func Status(ctx context.Context, txr catalogstore.Transactor, servers catalogstore.ServerRepo) (*catalogstore.Server, error) {
	tx, err := txr.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: begin read: %w", err)
	}
	defer tx.Rollback(ctx)
	return servers.Get(ctx, tx)
}
