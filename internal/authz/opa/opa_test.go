package opa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/ids"
)

func lookupFor(assignments ...Assignment) AssignmentLookup {
	return func(context.Context, authz.Metadata) ([]Assignment, error) {
		return assignments, nil
	}
}

func TestAdminBypassesPolicy(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, lookupFor())
	require.NoError(t, err)

	warehouse := ids.NewWarehouseID()
	decision, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{IsAdmin: true}, warehouse, authz.WarehouseDelete)
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestViewerCanUseButNotDelete(t *testing.T) {
	ctx := context.Background()
	warehouse := ids.NewWarehouseID()
	a, err := New(ctx, lookupFor(Assignment{
		EntityKind: authz.EntityWarehouse,
		EntityID:   warehouse.String(),
		Role:       "viewer",
	}))
	require.NoError(t, err)

	canUse, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseCanUse)
	require.NoError(t, err)
	assert.True(t, canUse.Allowed())

	getConfig, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseGetConfig)
	require.NoError(t, err)
	assert.True(t, getConfig.Allowed())

	del, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseDelete)
	require.NoError(t, err)
	assert.False(t, del.Allowed())
}

func TestEditorCannotModifyStorageCredential(t *testing.T) {
	ctx := context.Background()
	warehouse := ids.NewWarehouseID()
	a, err := New(ctx, lookupFor(Assignment{
		EntityKind: authz.EntityWarehouse,
		EntityID:   warehouse.String(),
		Role:       "editor",
	}))
	require.NoError(t, err)

	rename, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseRename)
	require.NoError(t, err)
	assert.True(t, rename.Allowed())

	modifyCred, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseModifyStorageCredential)
	require.NoError(t, err)
	assert.False(t, modifyCred.Allowed())
}

func TestOwnerAllowedEverything(t *testing.T) {
	ctx := context.Background()
	warehouse := ids.NewWarehouseID()
	a, err := New(ctx, lookupFor(Assignment{
		EntityKind: authz.EntityWarehouse,
		EntityID:   warehouse.String(),
		Role:       "owner",
	}))
	require.NoError(t, err)

	del, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseDelete)
	require.NoError(t, err)
	assert.True(t, del.Allowed())
}

func TestNoAssignmentDeniesByDefault(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, lookupFor())
	require.NoError(t, err)

	decision, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, ids.NewWarehouseID(), authz.WarehouseCanUse)
	require.NoError(t, err)
	assert.False(t, decision.Allowed())
}

func TestAssignmentOnOtherEntityDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	warehouse := ids.NewWarehouseID()
	other := ids.NewWarehouseID()
	a, err := New(ctx, lookupFor(Assignment{
		EntityKind: authz.EntityWarehouse,
		EntityID:   other.String(),
		Role:       "owner",
	}))
	require.NoError(t, err)

	decision, err := a.IsAllowedWarehouseAction(ctx, authz.Metadata{}, warehouse, authz.WarehouseCanUse)
	require.NoError(t, err)
	assert.False(t, decision.Allowed())
}

func TestAreAllowedWarehouseActionsMatchesCheckLength(t *testing.T) {
	ctx := context.Background()
	warehouse := ids.NewWarehouseID()
	a, err := New(ctx, lookupFor(Assignment{
		EntityKind: authz.EntityWarehouse,
		EntityID:   warehouse.String(),
		Role:       "viewer",
	}))
	require.NoError(t, err)

	checks := []authz.WarehouseActionCheck{
		{Warehouse: warehouse, Action: authz.WarehouseCanUse},
		{Warehouse: warehouse, Action: authz.WarehouseDelete},
	}
	decisions, err := a.AreAllowedWarehouseActions(ctx, authz.Metadata{}, checks)
	require.NoError(t, err)
	require.Len(t, decisions, len(checks))
	assert.True(t, decisions[0].Allowed())
	assert.False(t, decisions[1].Allowed())
}

func TestNewWithPolicyRejectsInvalidRego(t *testing.T) {
	ctx := context.Background()
	_, err := NewWithPolicy(ctx, "not valid rego {{{", lookupFor())
	assert.Error(t, err)
}
