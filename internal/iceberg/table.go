package iceberg

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/storageprofile"
)

// CreateTable implements create_table, including staged creation: a
// staged table is inserted with MetadataLocation == nil and never
// appears in a default listing until its first real commit.
func (e *CommitEngine) CreateTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req CreateTableRequest) (*LoadTableResult, error) {
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.Namespace, authz.NamespaceCreateTable); err != nil {
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

	if existing, err := e.tabulars.GetByName(ctx, tx, req.Namespace, catalogstore.TabularTable, req.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, icebergerr.TableAlreadyExists(req.Name)
	}

	profile, err := e.profileFor(w)
	if err != nil {
		return nil, err
	}

	location := req.Location
	if location == "" {
		location = storageprofile.DefaultTabularLocation(namespaceLocation(ns, profile), req.Name)
	}

	tabularID := ids.NewTabularID()
	tab := catalogstore.Tabular{
		TabularID:   tabularID,
		NamespaceID: req.Namespace,
		Kind:        catalogstore.TabularTable,
		Name:        req.Name,
		Location:    location,
	}
	if err := e.tabulars.Create(ctx, tx, tab); err != nil {
		return nil, err
	}

	if req.StageCreate {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("iceberg: commit: %w", err)
		}
		staged := emptyTableMetadata(location, e.clock())
		return &LoadTableResult{Metadata: staged}, nil
	}

	next := emptyTableMetadata(location, e.clock())
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
	e.appendHistoryAndFire(ctx, tabularID, metadataLocation, next.LastUpdatedMs, w.WarehouseID, EventTableCreated)

	return e.buildLoadTableResult(ctx, w, profile, metadataLocation, next, req.DataAccess, true)
}

// RegisterTable implements register_table: adopts an existing metadata
// document at an already-written location. overwrite=true requires commit
// authorization against whatever row currently owns the name, matching
// how commit_table is gated.
func (e *CommitEngine) RegisterTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req RegisterTableRequest) (*LoadTableResult, error) {
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.Namespace, authz.NamespaceCreateTable); err != nil {
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

	existing, err := e.tabulars.GetByName(ctx, tx, req.Namespace, catalogstore.TabularTable, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil && !req.Overwrite {
		return nil, icebergerr.TableAlreadyExists(req.Name)
	}
	if existing != nil && req.Overwrite {
		if err := authz.RequireTableAction(ctx, authorizer, meta, existing.TabularID, authz.TableCommit); err != nil {
			return nil, err
		}
	}

	profile, err := e.profileFor(w)
	if err != nil {
		return nil, err
	}
	io, err := e.metadataIOFor(profile.Kind())
	if err != nil {
		return nil, err
	}
	next, err := io.Read(ctx, req.MetadataLocation)
	if err != nil {
		return nil, err
	}

	var tabularID ids.TabularID
	if existing != nil {
		tabularID = existing.TabularID
		if err := e.tabulars.SetMetadataLocation(ctx, tx, tabularID, req.MetadataLocation); err != nil {
			return nil, err
		}
	} else {
		tabularID = ids.NewTabularID()
		tab := catalogstore.Tabular{
			TabularID:        tabularID,
			NamespaceID:      req.Namespace,
			Kind:             catalogstore.TabularTable,
			Name:             req.Name,
			Location:         next.Location,
			MetadataLocation: &req.MetadataLocation,
		}
		if err := e.tabulars.Create(ctx, tx, tab); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("iceberg: commit: %w", err)
	}
	e.appendHistoryAndFire(ctx, tabularID, req.MetadataLocation, next.LastUpdatedMs, w.WarehouseID, EventTableCreated)

	return e.buildLoadTableResult(ctx, w, profile, req.MetadataLocation, next, DataAccessNone, false)
}

// LoadTable implements load_table, vending credentials when requested.
func (e *CommitEngine) LoadTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req LoadTableRequest) (*LoadTableResult, error) {
	if err := authz.RequireTableAction(ctx, authorizer, meta, req.TabularID, authz.TableGetMetadata); err != nil {
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
		return nil, icebergerr.TableNotFound(req.TabularID.String())
	}
	if tab.MetadataLocation == nil {
		return nil, icebergerr.TableConfigFailedDependency(fmt.Errorf("table is staged, no metadata yet"))
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

	return e.buildLoadTableResult(ctx, w, profile, *tab.MetadataLocation, current, req.DataAccess, req.Write)
}

// CommitTable implements commit_table: lock the row, re-run the
// Requirement/Update state machine against the freshest metadata, persist,
// and fire the commit hook.
func (e *CommitEngine) CommitTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req CommitTableRequest) (*CommitTableResponse, error) {
	if err := authz.RequireTableAction(ctx, authorizer, meta, req.TabularID, authz.TableCommit); err != nil {
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
	e.appendHistoryAndFire(ctx, locked.tab.TabularID, location, next.LastUpdatedMs, locked.wh.WarehouseID, EventTableCommitted)

	return e.buildLoadTableResult(ctx, locked.wh, locked.profile, location, next, DataAccessNone, false)
}

// DropTable implements drop_table. Soft-mode warehouses mark deleted_at
// (hidden from default listings, still physically present) and, when
// PurgeRequested is set, enqueue a deferred tabular_expiration task at
// now+SoftDeleteTTL. Hard-mode drops the row
// synchronously and optionally enqueues tabular_purge. force bypasses a
// table's protected flag.
func (e *CommitEngine) DropTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req DropTableRequest) error {
	if err := authz.RequireTableAction(ctx, authorizer, meta, req.TabularID, authz.TableDrop); err != nil {
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
		return icebergerr.TableNotFound(req.TabularID.String())
	}
	if tab.Protected && !req.Force {
		return icebergerr.TableActionForbidden("drop: table is protected")
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
	e.hooks.Fire(ctx, Event{Kind: EventTableDropped, Warehouse: w.WarehouseID, Tabular: tab.TabularID})
	return nil
}

// RenameTable implements rename_table: the identifier changes, the
// tabular_id and all metadata history do not.
func (e *CommitEngine) RenameTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req RenameTableRequest) error {
	if err := authz.RequireTableAction(ctx, authorizer, meta, req.TabularID, authz.TableRename); err != nil {
		return err
	}
	if err := authz.RequireNamespaceAction(ctx, authorizer, meta, req.DestNamespace, authz.NamespaceCreateTable); err != nil {
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
		return icebergerr.TableNotFound(req.TabularID.String())
	}
	if existing, err := e.tabulars.GetByName(ctx, tx, req.DestNamespace, catalogstore.TabularTable, req.DestName); err != nil {
		return err
	} else if existing != nil {
		return icebergerr.TableAlreadyExists(req.DestName)
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
	e.hooks.Fire(ctx, Event{Kind: EventTableRenamed, Warehouse: w.WarehouseID, Tabular: tab.TabularID})
	return nil
}

// UndropTable implements undrop_tabular for tables: clears deleted_at and
// cancels the pending tabular_expiration task, if one exists.
func (e *CommitEngine) UndropTable(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, id ids.TabularID) error {
	if err := authz.RequireTableAction(ctx, authorizer, meta, id, authz.TableUndrop); err != nil {
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
		return icebergerr.TableNotFound(id.String())
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
	e.hooks.Fire(ctx, Event{Kind: EventTableUndropped, Warehouse: w.WarehouseID, Tabular: id})
	return nil
}

func strPtr(s string) *string { return &s }
