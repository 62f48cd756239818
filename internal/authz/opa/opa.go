// Package opa implements internal/authz.Authorizer over an embedded Rego
// policy, evaluated in-process via github.com/open-policy-agent/opa as a Go
// library (no sidecar, no network hop). It stands in for an OpenFGA-style
// graph authorizer: the tuple-based "who can do what" question is answered
// here by a role-assignment lookup fed into the policy as structured input
// instead of an OpenFGA relationship graph.
package opa

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/ids"
)

//go:embed policy.rego
var defaultPolicy string

// Assignment is one (principal, entity, role) row as OPA needs it; the
// backing store is internal/catalogstore, injected via AssignmentLookup so
// this package has no storage dependency of its own.
type Assignment struct {
	EntityKind authz.EntityKind
	EntityID   string
	Role       string
}

// AssignmentLookup resolves every role a principal holds, across every
// entity, in one call; the evaluator does not issue one query per check.
type AssignmentLookup func(ctx context.Context, meta authz.Metadata) ([]Assignment, error)

// Authorizer evaluates authz.Metadata + a single (entity, action) pair
// against the embedded policy.
type Authorizer struct {
	query  rego.PreparedEvalQuery
	lookup AssignmentLookup
}

// New compiles the embedded default policy and returns an Authorizer that
// resolves assignments via lookup.
func New(ctx context.Context, lookup AssignmentLookup) (*Authorizer, error) {
	return NewWithPolicy(ctx, defaultPolicy, lookup)
}

// NewWithPolicy compiles an operator-supplied Rego policy module instead of
// the embedded default, for deployments that author their own rules.
func NewWithPolicy(ctx context.Context, policy string, lookup AssignmentLookup) (*Authorizer, error) {
	r := rego.New(
		rego.Query("data.icecat.authz.allow"),
		rego.Module("policy.rego", policy),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz/opa: compiling policy: %w", err)
	}
	return &Authorizer{query: prepared, lookup: lookup}, nil
}

func (a *Authorizer) evaluate(ctx context.Context, meta authz.Metadata, kind authz.EntityKind, entityID, action string) (authz.Decision, error) {
	if meta.IsAdmin {
		return authz.NewDecision(true), nil
	}

	assignments, err := a.lookup(ctx, meta)
	if err != nil {
		return authz.Decision{}, fmt.Errorf("authz/opa: resolving assignments: %w", err)
	}

	input := map[string]interface{}{
		"entity_kind": string(kind),
		"entity_id":   entityID,
		"action":      action,
		"assignments": assignments,
	}

	results, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return authz.Decision{}, fmt.Errorf("authz/opa: evaluating policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return authz.NewDecision(false), nil
	}

	allowed, _ := results[0].Expressions[0].Value.(bool)
	return authz.NewDecision(allowed), nil
}

func (a *Authorizer) IsAllowedWarehouseAction(ctx context.Context, meta authz.Metadata, warehouse ids.WarehouseID, action authz.WarehouseAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityWarehouse, warehouse.String(), string(action))
}

func (a *Authorizer) IsAllowedNamespaceAction(ctx context.Context, meta authz.Metadata, namespace ids.NamespaceID, action authz.NamespaceAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityNamespace, namespace.String(), string(action))
}

func (a *Authorizer) IsAllowedTableAction(ctx context.Context, meta authz.Metadata, table ids.TabularID, action authz.TableAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityTable, table.String(), string(action))
}

func (a *Authorizer) IsAllowedViewAction(ctx context.Context, meta authz.Metadata, view ids.TabularID, action authz.ViewAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityView, view.String(), string(action))
}

func (a *Authorizer) IsAllowedRoleAction(ctx context.Context, meta authz.Metadata, role ids.RoleID, action authz.RoleAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityRole, role.String(), string(action))
}

func (a *Authorizer) IsAllowedProjectAction(ctx context.Context, meta authz.Metadata, project ids.ProjectID, action authz.ProjectAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityProject, project.String(), string(action))
}

func (a *Authorizer) IsAllowedServerAction(ctx context.Context, meta authz.Metadata, action authz.ServerAction) (authz.Decision, error) {
	return a.evaluate(ctx, meta, authz.EntityServer, "server", string(action))
}

func (a *Authorizer) AreAllowedWarehouseActions(ctx context.Context, meta authz.Metadata, checks []authz.WarehouseActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i, check := range checks {
		d, err := a.IsAllowedWarehouseAction(ctx, meta, check.Warehouse, check.Action)
		if err != nil {
			return nil, err
		}
		decisions[i] = d
	}
	return decisions, nil
}

func (a *Authorizer) AreAllowedNamespaceActions(ctx context.Context, meta authz.Metadata, checks []authz.NamespaceActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i, check := range checks {
		d, err := a.IsAllowedNamespaceAction(ctx, meta, check.Namespace, check.Action)
		if err != nil {
			return nil, err
		}
		decisions[i] = d
	}
	return decisions, nil
}

func (a *Authorizer) AreAllowedTableActions(ctx context.Context, meta authz.Metadata, checks []authz.TableActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i, check := range checks {
		d, err := a.IsAllowedTableAction(ctx, meta, check.Table, check.Action)
		if err != nil {
			return nil, err
		}
		decisions[i] = d
	}
	return decisions, nil
}

func (a *Authorizer) AreAllowedViewActions(ctx context.Context, meta authz.Metadata, checks []authz.ViewActionCheck) ([]authz.Decision, error) {
	decisions := make([]authz.Decision, len(checks))
	for i, check := range checks {
		d, err := a.IsAllowedViewAction(ctx, meta, check.View, check.Action)
		if err != nil {
			return nil, err
		}
		decisions[i] = d
	}
	return decisions, nil
}
