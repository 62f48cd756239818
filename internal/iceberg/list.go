package iceberg

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

// ListTables returns one page of the namespace's tables, masked down to the
// ones the caller is authorized to see. The page token advances over the
// full, unfiltered row set the store returned: masking never shifts or
// shrinks the cursor, it only hides rows from this response.
func (e *CommitEngine) ListTables(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req ListTablesRequest) (*TabularListResult, error) {
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.Namespace, authz.NamespaceListTables); err != nil {
		return nil, err
	}

	tx, err := e.txr.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin read: %w", err)
	}
	defer tx.Rollback(ctx)

	tabulars, next, err := e.tabulars.List(ctx, tx, req.Namespace, catalogstore.TabularTable, catalogstore.ListActive, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}

	tabularIDs := make([]ids.TabularID, len(tabulars))
	for i, t := range tabulars {
		tabularIDs[i] = t.TabularID
	}
	mask, err := authz.FilterTablesForList(ctx, authorizer, meta, req.Namespace, tabularIDs)
	if err != nil {
		return nil, err
	}

	visible := make([]catalogstore.Tabular, 0, len(tabulars))
	for i, t := range tabulars {
		if mask[i] {
			visible = append(visible, t)
		}
	}
	return &TabularListResult{Tabulars: visible, NextPageToken: next}, nil
}

// ListViews mirrors ListTables for views.
func (e *CommitEngine) ListViews(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req ListViewsRequest) (*TabularListResult, error) {
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.Namespace, authz.NamespaceListViews); err != nil {
		return nil, err
	}

	tx, err := e.txr.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin read: %w", err)
	}
	defer tx.Rollback(ctx)

	tabulars, next, err := e.tabulars.List(ctx, tx, req.Namespace, catalogstore.TabularView, catalogstore.ListActive, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}

	viewIDs := make([]ids.TabularID, len(tabulars))
	for i, t := range tabulars {
		viewIDs[i] = t.TabularID
	}
	mask, err := authz.FilterViewsForList(ctx, authorizer, meta, req.Namespace, viewIDs)
	if err != nil {
		return nil, err
	}

	visible := make([]catalogstore.Tabular, 0, len(tabulars))
	for i, t := range tabulars {
		if mask[i] {
			visible = append(visible, t)
		}
	}
	return &TabularListResult{Tabulars: visible, NextPageToken: next}, nil
}

// ListNamespaces returns one page of a warehouse's root namespaces, or of a
// parent namespace's children, masked down to the ones the caller is
// authorized to see.
func (e *CommitEngine) ListNamespaces(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req ListNamespacesRequest) (*NamespaceListResult, error) {
	if req.Parent != nil {
		if err := authz.RequireNamespaceAction(ctx, authorizer, meta, *req.Parent, authz.NamespaceListNamespaces); err != nil {
			return nil, err
		}
	} else {
		if err := authz.RequireWarehouseAction(ctx, authorizer, meta, req.Warehouse, authz.WarehouseListNamespaces); err != nil {
			return nil, err
		}
	}

	tx, err := e.txr.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin read: %w", err)
	}
	defer tx.Rollback(ctx)

	namespaces, next, err := e.namespaces.ListChildren(ctx, tx, req.Parent, req.Warehouse, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}

	nsIDs := make([]ids.NamespaceID, len(namespaces))
	for i, n := range namespaces {
		nsIDs[i] = n.NamespaceID
	}
	mask, err := authz.FilterNamespacesForList(ctx, authorizer, meta, req.Warehouse, req.Parent, nsIDs)
	if err != nil {
		return nil, err
	}

	visible := make([]catalogstore.Namespace, 0, len(namespaces))
	for i, n := range namespaces {
		if mask[i] {
			visible = append(visible, n)
		}
	}
	return &NamespaceListResult{Namespaces: visible, NextPageToken: next}, nil
}
