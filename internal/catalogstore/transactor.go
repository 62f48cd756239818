package catalogstore

import "context"

// Tx is a handle passed down to every mutating repo call. Go has no trait
// object for "whatever the driver's transaction type is", so Tx is an
// opaque marker interface and each backend asserts its own concrete type
// out of it (see postgres.Tx).
type Tx interface {
	// Commit finalizes the transaction. Calling it twice is an error.
	Commit(ctx context.Context) error
	// Rollback aborts the transaction. Safe to call after Commit (no-op).
	Rollback(ctx context.Context) error
}

// Transactor begins write and read transactions. Write transactions run
// serializable isolation per row family; read transactions may be routed to
// a replica pool by the backend.
type Transactor interface {
	BeginWrite(ctx context.Context) (Tx, error)
	BeginRead(ctx context.Context) (Tx, error)
}
