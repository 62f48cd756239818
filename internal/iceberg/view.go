package iceberg

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
)

// CreateView implements create_view. Views share the Tabular row shape
// with tables (catalogstore.TabularKind distinguishes them) and the same
// commit state machine; they differ only in having no data-access
// credential vending and no staged-creation mode.
func (e *CommitEngine) CreateView(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req CreateViewRequest) (*LoadTableResult, error) {
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.Namespace, authz.NamespaceCreateView); err != nil {
		return nil, err
	}

	tx, err := e.txr.BeginWrite(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	ns, err := e.namespaces.Get(ctx, tx, req.Namespace)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, icebergerr.NamespaceNotFound(req.Namespace.String())
	}
	w, err := e.loadActiveWarehouse(ctx, tx, ns.WarehouseID)
	if err != nil {
		return nil, err
	}
	if err := e.requireWritable(w); err != nil {
		return nil, err
	}
	if existing, err := e.tabulars.GetByName(ctx, tx, req.Namespace, catalogstore.TabularView, req.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, icebergerr.TabularAlreadyExists(req.Name)
	}

	profile, err := e.profileFor(w)
	if err != nil {
		return nil, err
	}
	location := req.Location
	if location == "" {
		location = storageprofileDefaultViewLocation(ns, profile, req.Name)
	}

	tabularID := ids.NewTabularID()
	tab := catalogstore.Tabular{
		TabularID:   tabularID,
		NamespaceID: req.Namespace,
		Kind:        catalogstore.TabularView,
		Name:        req.Name,
		Location:    location,
	}
	if err := e.tabulars.Create(ctx, tx, tab); err != nil {
		return nil, err
	}

	next := emptyTableMetadata(location, e.clock())
	next.Properties = req.Properties
	io, err := e.metadataIOFor(profile.Kind())
	if err != nil {
		return nil, err
	}
	metadataLocation, err := io.Write(ctx, location, next)
	if err != nil {
		return nil, err
	}
	if err := e.tabulars.SetMetadataLocation(ctx, tx, tabularID, metadataLocation); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("iceberg: commit: %w", err)
	}
	e.appendHistoryAndFire(ctx, tabularID, metadataLocation, next.LastUpdatedMs, w.WarehouseID, EventViewCreated)

	return e.buildLoadTableResult(ctx, w, profile, metadataLocation, next, DataAccessNone, false)
}

// LoadView implements load_view.
func (e *CommitEngine) LoadView(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req LoadViewRequest) (*LoadTableResult, error) {
	if err := authz.RequireViewAction(ctx, authorizer, meta, req.TabularID, authz.ViewGetMetadata); err != nil {
		return nil, err
	}

	tx, err := e.txr.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin read: %w", err)
	}
	defer tx.Rollback(ctx)

	tab, err := e.tabulars.Get(ctx, tx, req.TabularID)
	if err != nil {
		return nil, err
	}
	if tab == nil || tab.DeletedAt != nil {
		return nil, icebergerr.ViewNotFound(req.TabularID.String())
	}
	ns, err := e.namespaces.Get(ctx, tx, tab.NamespaceID)
	if err != nil {
		return nil, err
	}
	w, err := e.loadActiveWarehouse(ctx, tx, ns.WarehouseID)
	if err != nil {
		return nil, err
	}
	profile, err := e.profileFor(w)
	if err != nil {
		return nil, err
	}
	io, err := e.metadataIOFor(profile.Kind())
	if err != nil {
		return nil, err
	}
	current, err := io.Read(ctx, *tab.MetadataLocation)
	if err != nil {
		return nil, err
	}
	return e.buildLoadTableResult(ctx, w, profile, *tab.MetadataLocation, current, DataAccessNone, false)
}

// CommitView implements commit_view with the same Requirement/Update state
// machine commit_table uses.
func (e *CommitEngine) CommitView(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req CommitViewRequest) (*LoadTableResult, error) {
	if err := authz.RequireViewAction(ctx, authorizer, meta, req.TabularID, authz.ViewCommit); err != nil {
		return nil, err
	}

	tx, err := e.txr.BeginWrite(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := e.lockAndLoad(ctx, tx, req.TabularID)
	if err != nil {
		return nil, err
	}
	if err := e.requireWritable(locked.wh); err != nil {
		return nil, err
	}
	next, err := applyCommit(locked.current, req.Requirements, req.Updates, e.clock(), metadataLogMax(locked.wh))
	if err != nil {
		return nil, err
	}
	location, err := locked.io.Write(ctx, locked.tab.Location, next)
	if err != nil {
		return nil, err
	}
	if err := e.tabulars.SetMetadataLocation(ctx, tx, locked.tab.TabularID, location); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("iceberg: commit: %w", err)
	}
	e.appendHistoryAndFire(ctx, locked.tab.TabularID, location, next.LastUpdatedMs, locked.wh.WarehouseID, EventViewCommitted)

	return e.buildLoadTableResult(ctx, locked.wh, locked.profile, location, next, DataAccessNone, false)
}

// DropView implements drop_view, identical branching to DropTable but
// gated by ViewAction checks.
func (e *CommitEngine) DropView(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req DropViewRequest) error {
	if err := authz.RequireViewAction(ctx, authorizer, meta, req.TabularID, authz.ViewDrop); err != nil {
		return err
	}

	tx, err := e.txr.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("iceberg: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	tab, err := e.tabulars.LockForCommit(ctx, tx, req.TabularID)
	if err != nil {
		return err
	}
	if tab == nil || tab.DeletedAt != nil {
		return icebergerr.ViewNotFound(req.TabularID.String())
	}
	if tab.Protected && !req.Force {
		return icebergerr.ViewActionForbidden("drop: view is protected")
	}
	ns, err := e.namespaces.Get(ctx, tx, tab.NamespaceID)
	if err != nil {
		return err
	}
	w, err := e.loadActiveWarehouse(ctx, tx, ns.WarehouseID)
	if err != nil {
		return err
	}
	if err := e.requireWritable(w); err != nil {
		return err
	}

	switch w.TabularDeleteMode {
	case catalogstore.DeleteModeSoft:
		var taskID *ids.TaskID
		if req.PurgeRequested {
			id, err := e.enqueueExpiration(ctx, tx, w, tab, req.PurgeRequested)
			if err != nil {
				return err
			}
			taskID = &id
		}
		if err := e.tabulars.SoftDelete(ctx, tx, tab.TabularID, taskID); err != nil {
			return err
		}
	case catalogstore.DeleteModeHard:
		if err := e.tabulars.HardDelete(ctx, tx, tab.TabularID); err != nil {
			return err
		}
		if req.PurgeRequested {
			if _, err := e.enqueuePurge(ctx, tx, w, tab); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("iceberg: unknown tabular delete mode %q", w.TabularDeleteMode)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("iceberg: commit: %w", err)
	}
	e.hooks.Fire(ctx, Event{Kind: EventViewDropped, Warehouse: w.WarehouseID, Tabular: tab.TabularID})
	return nil
}

// RenameView implements rename_table's view analog.
func (e *CommitEngine) RenameView(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req RenameViewRequest) error {
	if err := authz.RequireViewAction(ctx, authorizer, meta, req.TabularID, authz.ViewRename); err != nil {
		return err
	}
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.DestNamespace, authz.NamespaceCreateView); err != nil {
		return err
	}

	tx, err := e.txr.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("iceberg: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	tab, err := e.tabulars.LockForCommit(ctx, tx, req.TabularID)
	if err != nil {
		return err
	}
	if tab == nil || tab.DeletedAt != nil {
		return icebergerr.ViewNotFound(req.TabularID.String())
	}
	if existing, err := e.tabulars.GetByName(ctx, tx, req.DestNamespace, catalogstore.TabularView, req.DestName); err != nil {
		return err
	} else if existing != nil {
		return icebergerr.TabularAlreadyExists(req.DestName)
	}
	ns, err := e.namespaces.Get(ctx, tx, tab.NamespaceID)
	if err != nil {
		return err
	}
	w, err := e.loadActiveWarehouse(ctx, tx, ns.WarehouseID)
	if err != nil {
		return err
	}
	if err := e.requireWritable(w); err != nil {
		return err
	}
	if err := e.tabulars.Rename(ctx, tx, req.TabularID, req.DestNamespace, req.DestName); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("iceberg: commit: %w", err)
	}
	e.hooks.Fire(ctx, Event{Kind: EventViewRenamed, Warehouse: w.WarehouseID, Tabular: tab.TabularID})
	return nil
}

// UndropView mirrors UndropTable.
func (e *CommitEngine) UndropView(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, id ids.TabularID) error {
	if err := authz.RequireViewAction(ctx, authorizer, meta, id, authz.ViewUndrop); err != nil {
		return err
	}

	tx, err := e.txr.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("iceberg: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	tab, err := e.tabulars.LockForCommit(ctx, tx, id)
	if err != nil {
		return err
	}
	if tab == nil || tab.DeletedAt == nil {
		return icebergerr.ViewNotFound(id.String())
	}
	ns, err := e.namespaces.Get(ctx, tx, tab.NamespaceID)
	if err != nil {
		return err
	}
	w, err := e.loadActiveWarehouse(ctx, tx, ns.WarehouseID)
	if err != nil {
		return err
	}
	if tab.CleanupTaskID != nil {
		if _, err := e.tasks.Cancel(ctx, tx, QueueTabularExpiration, &w.WarehouseID, strPtr(tab.TabularID.String()), false); err != nil {
			return err
		}
	}
	if err := e.tabulars.Undrop(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("iceberg: commit: %w", err)
	}
	e.hooks.Fire(ctx, Event{Kind: EventViewUndropped, Warehouse: w.WarehouseID, Tabular: id})
	return nil
}
