package authz

import (
	"context"

	"catalog.icecat.io/internal/authn"
	"catalog.icecat.io/internal/ids"
)

// Metadata carries the principal and tenancy context every authorization
// check is evaluated against.
type Metadata struct {
	Principal authn.Principal
	ProjectID ids.ProjectID
	IsAdmin   bool
}

// Authorizer is the pluggable authorization backend. Concrete
// implementations (allowall, opa) are selected at startup from
// internal/config: a small, stable interface, swapped wholesale rather
// than branched on internally.
//
// A false Decision is never an error; IsAllowed* only returns an error
// when the backend itself failed to answer (network, policy-eval panic).
type Authorizer interface {
	IsAllowedWarehouseAction(ctx context.Context, meta Metadata, warehouse ids.WarehouseID, action WarehouseAction) (Decision, error)
	IsAllowedNamespaceAction(ctx context.Context, meta Metadata, namespace ids.NamespaceID, action NamespaceAction) (Decision, error)
	IsAllowedTableAction(ctx context.Context, meta Metadata, table ids.TabularID, action TableAction) (Decision, error)
	IsAllowedViewAction(ctx context.Context, meta Metadata, view ids.TabularID, action ViewAction) (Decision, error)
	IsAllowedRoleAction(ctx context.Context, meta Metadata, role ids.RoleID, action RoleAction) (Decision, error)
	IsAllowedProjectAction(ctx context.Context, meta Metadata, project ids.ProjectID, action ProjectAction) (Decision, error)
	IsAllowedServerAction(ctx context.Context, meta Metadata, action ServerAction) (Decision, error)

	// AreAllowedWarehouseActions batches a set of (warehouse, action) pairs
	// into one backend round trip. The returned slice is length-preserving;
	// a backend that returns a different length is a bug, reported as
	// icebergerr.AuthorizationCountMismatch by the caller (internal/authz's
	// batch helpers in require.go), never silently truncated or padded here.
	AreAllowedWarehouseActions(ctx context.Context, meta Metadata, checks []WarehouseActionCheck) ([]Decision, error)
	// AreAllowedNamespaceActions batches a set of (namespace, action) pairs.
	// Used by the list-masking helpers to resolve NamespaceCanIncludeInList
	// for every child namespace of a listing in one round trip.
	AreAllowedNamespaceActions(ctx context.Context, meta Metadata, checks []NamespaceActionCheck) ([]Decision, error)
	// AreAllowedTableActions batches a set of (table, action) pairs. Used by
	// the list-masking helpers to resolve TableCanIncludeInList for every
	// table of a listing in one round trip.
	AreAllowedTableActions(ctx context.Context, meta Metadata, checks []TableActionCheck) ([]Decision, error)
	// AreAllowedViewActions batches a set of (view, action) pairs. Used by
	// the list-masking helpers to resolve ViewCanIncludeInList for every
	// view of a listing in one round trip.
	AreAllowedViewActions(ctx context.Context, meta Metadata, checks []ViewActionCheck) ([]Decision, error)
}

// WarehouseActionCheck is one element of a batch authorization request.
type WarehouseActionCheck struct {
	Warehouse ids.WarehouseID
	Action    WarehouseAction
}

// NamespaceActionCheck is one element of a batch authorization request.
type NamespaceActionCheck struct {
	Namespace ids.NamespaceID
	Action    NamespaceAction
}

// TableActionCheck is one element of a batch authorization request.
type TableActionCheck struct {
	Table  ids.TabularID
	Action TableAction
}

// ViewActionCheck is one element of a batch authorization request.
type ViewActionCheck struct {
	View   ids.TabularID
	Action ViewAction
}
