// Package allowall implements a trivial always-allow Authorizer for
// single-tenant and test deployments: a zero-config default that stands
// in for a real authorization backend.
package allowall

import (
	"context"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/ids"
)

// Authorizer grants every action to every principal. It is the backend
// internal/config selects when authz.backend is left unset; opa must be
// chosen explicitly.
type Authorizer struct{}

func New() Authorizer { return Authorizer{} }

func (Authorizer) IsAllowedWarehouseAction(context.Context, authz.Metadata, ids.WarehouseID, authz.WarehouseAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) IsAllowedNamespaceAction(context.Context, authz.Metadata, ids.NamespaceID, authz.NamespaceAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) IsAllowedTableAction(context.Context, authz.Metadata, ids.TabularID, authz.TableAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) IsAllowedViewAction(context.Context, authz.Metadata, ids.TabularID, authz.ViewAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) IsAllowedRoleAction(context.Context, authz.Metadata, ids.RoleID, authz.RoleAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) IsAllowedProjectAction(context.Context, authz.Metadata, ids.ProjectID, authz.ProjectAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) IsAllowedServerAction(context.Context, authz.Metadata, authz.ServerAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}

func (Authorizer) AreAllowedWarehouseActions(_ context.Context, _ authz.Metadata, checks []authz.WarehouseActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i := range checks {
		decisions[i] = authz.NewDecision(true)
	}
	return decisions, nil
}

func (Authorizer) AreAllowedNamespaceActions(_ context.Context, _ authz.Metadata, checks []authz.NamespaceActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i := range checks {
		decisions[i] = authz.NewDecision(true)
	}
	return decisions, nil
}

func (Authorizer) AreAllowedTableActions(_ context.Context, _ authz.Metadata, checks []authz.TableActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i := range checks {
		decisions[i] = authz.NewDecision(true)
	}
	return decisions, nil
}

func (Authorizer) AreAllowedViewActions(_ context.Context, _ authz.Metadata, checks []authz.ViewActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i := range checks {
		decisions[i] = authz.NewDecision(true)
	}
	return decisions, nil
}
