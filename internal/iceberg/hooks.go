package iceberg

import (
	"context"

	"catalog.icecat.io/internal/ids"
)

// EventKind names the lifecycle events commit operations fan out to hooks.
type EventKind string

const (
	EventTableCreated  EventKind = "table.created"
	EventTableCommitted EventKind = "table.committed"
	EventTableDropped  EventKind = "table.dropped"
	EventTableRenamed  EventKind = "table.renamed"
	EventTableUndropped EventKind = "table.undropped"
	EventViewCreated   EventKind = "view.created"
	EventViewCommitted EventKind = "view.committed"
	EventViewDropped   EventKind = "view.dropped"
	EventViewRenamed   EventKind = "view.renamed"
	EventViewUndropped EventKind = "view.undropped"
)

// Event is what CommitEngine hands to Hooks after a transaction commits.
// Fields beyond Kind/Warehouse/Tabular are kind-specific and carried in
// Detail rather than a sprawling union struct.
type Event struct {
	Kind      EventKind
	Warehouse ids.WarehouseID
	Tabular   ids.TabularID
	Detail    map[string]string
}

// Hooks fans an Event out to configured endpoints. Implementations (built
// in internal/hooks) run every endpoint concurrently and never propagate an
// individual endpoint's failure back to the caller, so CommitEngine treats
// Fire as fire-and-forget from the caller's perspective: it's called after
// the write transaction commits and returns nothing.
type Hooks interface {
	Fire(ctx context.Context, event Event)
}

// NoopHooks discards every event; used when no hook endpoints are
// configured for a deployment.
type NoopHooks struct{}

func (NoopHooks) Fire(ctx context.Context, event Event) {}
