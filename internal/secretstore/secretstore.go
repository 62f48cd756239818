// Package secretstore implements an opaque id-to-secret mapping that
// decouples credential persistence (storage profile keys, vendor tokens)
// from the catalog rows that reference them by id. Store has exactly two
// implementations, selected at startup by the secret-backend
// configuration option: internal/secretstore/postgres for in-database
// storage encrypted at rest, and internal/secretstore/infisical for an
// external KV secret store.
package secretstore

import "context"

// Store is the minimal contract this package needs: create, get by id,
// delete. There is no update; rotating a secret's value means deleting
// the old id and creating a new one, so callers (warehouse storage-secret
// updates) never have to reason about partially-applied rotations.
type Store interface {
	// Create stores value opaquely and returns the id future lookups use.
	Create(ctx context.Context, value []byte) (string, error)
	// GetByID returns the plaintext value previously stored under id.
	GetByID(ctx context.Context, id string) ([]byte, error)
	// Delete removes the secret. The postgres implementation returns a
	// KindSecretReadFailed error for an id that doesn't exist.
	Delete(ctx context.Context, id string) error
}
