package authz

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
)

// RequireWarehouseAction short-circuits admins, then, for any action other
// than WarehouseCanUse, performs a two-check batch: CanUse and the
// requested action are checked together so a caller without CanUse
// receives the same 404 a missing warehouse would, never a 403 that would
// leak the warehouse's existence.
func RequireWarehouseAction(ctx context.Context, authorizer Authorizer, meta Metadata, warehouse ids.WarehouseID, action WarehouseAction) error {
	if meta.IsAdmin {
		return nil
	}

	if action == WarehouseCanUse {
		decision, err := authorizer.IsAllowedWarehouseAction(ctx, meta, warehouse, WarehouseCanUse)
		if err != nil {
			return icebergerr.AuthorizationBackendError(err)
		}
		if !decision.Allowed() {
			return icebergerr.WarehouseIDNotFound(warehouse)
		}
		return nil
	}

	checks := []WarehouseActionCheck{
		{Warehouse: warehouse, Action: WarehouseCanUse},
		{Warehouse: warehouse, Action: action},
	}
	decisions, err := authorizer.AreAllowedWarehouseActions(ctx, meta, checks)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if len(decisions) != len(checks) {
		return icebergerr.AuthorizationCountMismatch(len(checks), len(decisions))
	}

	if !decisions[0].Allowed() {
		// No CanUse on the ancestor: mask as not-found, never forbidden.
		decisions[1].Allowed() // still consume the second decision
		return icebergerr.WarehouseIDNotFound(warehouse)
	}
	if !decisions[1].Allowed() {
		return icebergerr.WarehouseActionForbidden(string(action))
	}
	return nil
}

// RequireNamespaceAction mirrors RequireWarehouseAction for namespaces.
// Namespace existence ambiguity is masked the same way: a failed CanUse
// reads identically to a missing namespace.
func RequireNamespaceAction(ctx context.Context, authorizer Authorizer, meta Metadata, namespace ids.NamespaceID, action NamespaceAction) error {
	if meta.IsAdmin {
		return nil
	}

	canUse, err := authorizer.IsAllowedNamespaceAction(ctx, meta, namespace, NamespaceCanUse)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !canUse.Allowed() {
		return icebergerr.NamespaceNotFound(namespace.String())
	}
	if action == NamespaceCanUse {
		return nil
	}

	decision, err := authorizer.IsAllowedNamespaceAction(ctx, meta, namespace, action)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !decision.Allowed() {
		return icebergerr.NamespaceActionForbidden(string(action))
	}
	return nil
}

// RequireTableAction mirrors RequireWarehouseAction for tables.
func RequireTableAction(ctx context.Context, authorizer Authorizer, meta Metadata, table ids.TabularID, action TableAction) error {
	if meta.IsAdmin {
		return nil
	}

	canUse, err := authorizer.IsAllowedTableAction(ctx, meta, table, TableCanUse)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !canUse.Allowed() {
		return icebergerr.TableNotFound(table.String())
	}
	if action == TableCanUse {
		return nil
	}

	decision, err := authorizer.IsAllowedTableAction(ctx, meta, table, action)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !decision.Allowed() {
		return icebergerr.TableActionForbidden(string(action))
	}
	return nil
}

// RequireViewAction mirrors RequireTableAction for views.
func RequireViewAction(ctx context.Context, authorizer Authorizer, meta Metadata, view ids.TabularID, action ViewAction) error {
	if meta.IsAdmin {
		return nil
	}

	canUse, err := authorizer.IsAllowedViewAction(ctx, meta, view, ViewCanUse)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !canUse.Allowed() {
		return icebergerr.ViewNotFound(view.String())
	}
	if action == ViewCanUse {
		return nil
	}

	decision, err := authorizer.IsAllowedViewAction(ctx, meta, view, action)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !decision.Allowed() {
		return icebergerr.ViewActionForbidden(string(action))
	}
	return nil
}

// RequireRoleAction mirrors RequireWarehouseAction for roles.
func RequireRoleAction(ctx context.Context, authorizer Authorizer, meta Metadata, role ids.RoleID, action RoleAction) error {
	if meta.IsAdmin {
		return nil
	}

	canUse, err := authorizer.IsAllowedRoleAction(ctx, meta, role, RoleCanUse)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !canUse.Allowed() {
		return icebergerr.RoleIDNotFound(role)
	}
	if action == RoleCanUse {
		return nil
	}

	decision, err := authorizer.IsAllowedRoleAction(ctx, meta, role, action)
	if err != nil {
		return icebergerr.AuthorizationBackendError(err)
	}
	if !decision.Allowed() {
		return icebergerr.Unauthorized(fmt.Sprintf("role:%s", action))
	}
	return nil
}

// FilterTablesForList resolves which of tableIDs a listing may return. It
// first checks NamespaceCanListEverything on the containing namespace; when
// granted, every table passes and no per-item check runs. Otherwise it
// batches one TableCanIncludeInList check per table and masks out the ones
// that fail. The returned slice has the same length and order as tableIDs.
func FilterTablesForList(ctx context.Context, authorizer Authorizer, meta Metadata, namespace ids.NamespaceID, tableIDs []ids.TabularID) ([]bool, error) {
	if meta.IsAdmin {
		return allTrue(len(tableIDs)), nil
	}

	everything, err := authorizer.IsAllowedNamespaceAction(ctx, meta, namespace, NamespaceCanListEverything)
	if err != nil {
		return nil, icebergerr.AuthorizationBackendError(err)
	}
	if everything.Allowed() {
		return allTrue(len(tableIDs)), nil
	}

	checks := make([]TableActionCheck, len(tableIDs))
	for i, id := range tableIDs {
		checks[i] = TableActionCheck{Table: id, Action: TableCanIncludeInList}
	}
	decisions, err := authorizer.AreAllowedTableActions(ctx, meta, checks)
	if err != nil {
		return nil, icebergerr.AuthorizationBackendError(err)
	}
	if len(decisions) != len(checks) {
		return nil, icebergerr.AuthorizationCountMismatch(len(checks), len(decisions))
	}
	return decisionMask(decisions), nil
}

// FilterViewsForList mirrors FilterTablesForList for views.
func FilterViewsForList(ctx context.Context, authorizer Authorizer, meta Metadata, namespace ids.NamespaceID, viewIDs []ids.TabularID) ([]bool, error) {
	if meta.IsAdmin {
		return allTrue(len(viewIDs)), nil
	}

	everything, err := authorizer.IsAllowedNamespaceAction(ctx, meta, namespace, NamespaceCanListEverything)
	if err != nil {
		return nil, icebergerr.AuthorizationBackendError(err)
	}
	if everything.Allowed() {
		return allTrue(len(viewIDs)), nil
	}

	checks := make([]ViewActionCheck, len(viewIDs))
	for i, id := range viewIDs {
		checks[i] = ViewActionCheck{View: id, Action: ViewCanIncludeInList}
	}
	decisions, err := authorizer.AreAllowedViewActions(ctx, meta, checks)
	if err != nil {
		return nil, icebergerr.AuthorizationBackendError(err)
	}
	if len(decisions) != len(checks) {
		return nil, icebergerr.AuthorizationCountMismatch(len(checks), len(decisions))
	}
	return decisionMask(decisions), nil
}

// FilterNamespacesForList resolves which of namespaceIDs a child-namespace
// listing may return. The CanListEverything bypass is checked against the
// listed parent namespace, or against the warehouse itself when parent is
// nil (listing a warehouse's root namespaces).
func FilterNamespacesForList(ctx context.Context, authorizer Authorizer, meta Metadata, warehouse ids.WarehouseID, parent *ids.NamespaceID, namespaceIDs []ids.NamespaceID) ([]bool, error) {
	if meta.IsAdmin {
		return allTrue(len(namespaceIDs)), nil
	}

	var everything Decision
	var err error
	if parent != nil {
		everything, err = authorizer.IsAllowedNamespaceAction(ctx, meta, *parent, NamespaceCanListEverything)
	} else {
		everything, err = authorizer.IsAllowedWarehouseAction(ctx, meta, warehouse, WarehouseCanListEverything)
	}
	if err != nil {
		return nil, icebergerr.AuthorizationBackendError(err)
	}
	if everything.Allowed() {
		return allTrue(len(namespaceIDs)), nil
	}

	checks := make([]NamespaceActionCheck, len(namespaceIDs))
	for i, id := range namespaceIDs {
		checks[i] = NamespaceActionCheck{Namespace: id, Action: NamespaceCanIncludeInList}
	}
	decisions, err := authorizer.AreAllowedNamespaceActions(ctx, meta, checks)
	if err != nil {
		return nil, icebergerr.AuthorizationBackendError(err)
	}
	if len(decisions) != len(checks) {
		return nil, icebergerr.AuthorizationCountMismatch(len(checks), len(decisions))
	}
	return decisionMask(decisions), nil
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func decisionMask(decisions []Decision) []bool {
	mask := make([]bool, len(decisions))
	for i := range decisions {
		mask[i] = decisions[i].Allowed()
	}
	return mask
}
