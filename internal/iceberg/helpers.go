package iceberg

import (
	"context"
	"fmt"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/iceberg/metadata"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/logging"
	"catalog.icecat.io/internal/storageprofile"
)

// namespaceLocation returns a namespace's effective base location: an
// explicit "location" property overrides the warehouse profile's default
// derivation from the namespace's path.
func namespaceLocation(ns *catalogstore.Namespace, profile storageprofile.Profile) string {
	if loc, ok := ns.Properties["location"]; ok && loc != "" {
		return loc
	}
	return storageprofile.DefaultNamespaceLocation(profile, ns.NameParts)
}

// storageprofileDefaultViewLocation derives a view's default location the
// same way a table's is derived: namespace base location plus the view's
// own name segment.
func storageprofileDefaultViewLocation(ns *catalogstore.Namespace, profile storageprofile.Profile, name string) string {
	return storageprofile.DefaultTabularLocation(namespaceLocation(ns, profile), name)
}

// emptyTableMetadata seeds the document a brand new (non-staged) table
// commits on create_table, before any schema/spec updates are applied to
// it by a follow-up commit_table.
func emptyTableMetadata(location string, now time.Time) metadata.TableMetadata {
	return metadata.TableMetadata{
		FormatVersion:   2,
		TableUUID:       ids.NewTabularID().String(),
		Location:        location,
		LastUpdatedMs:   now.UnixMilli(),
		CurrentSchemaID: 0,
		DefaultSpecID:   0,
		CurrentSnapshot: -1,
		Properties:      map[string]string{},
		Refs:            map[string]metadata.SnapshotRef{},
	}
}

// applyCommit runs metadata.Apply with current possibly nil (create path)
// or populated (commit path), deriving LastUpdatedMs from now and trimming
// to the warehouse's configured metadata_log retention.
func applyCommit(current *metadata.TableMetadata, reqs []metadata.Requirement, updates []metadata.Update, now time.Time, maxLogEntries int) (metadata.TableMetadata, error) {
	return metadata.Apply(current, reqs, updates, now.UnixMilli(), maxLogEntries)
}

func metadataLogMax(w *catalogstore.Warehouse) int {
	return w.MetadataLogMaxEntries
}

// lockedTabular bundles what every commit-path operation needs after
// acquiring the row lock: the row itself, its warehouse, storage profile,
// metadata I/O backend, and its current metadata document (nil if staged).
type lockedTabular struct {
	tab     *catalogstore.Tabular
	wh      *catalogstore.Warehouse
	profile storageprofile.Profile
	io      MetadataIO
	current *metadata.TableMetadata
}

func (e *CommitEngine) lockAndLoad(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*lockedTabular, error) {
	tab, err := e.tabulars.LockForCommit(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if tab == nil || tab.DeletedAt != nil {
		return nil, fmt.Errorf("iceberg: tabular %s not found or deleted", id)
	}

	ns, err := e.namespaces.Get(ctx, tx, tab.NamespaceID)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, fmt.Errorf("iceberg: namespace for tabular %s not found", id)
	}
	wh, err := e.loadActiveWarehouse(ctx, tx, ns.WarehouseID)
	if err != nil {
		return nil, err
	}
	profile, err := e.profileFor(wh)
	if err != nil {
		return nil, err
	}
	io, err := e.metadataIOFor(profile.Kind())
	if err != nil {
		return nil, err
	}

	var current *metadata.TableMetadata
	if tab.MetadataLocation != nil {
		m, err := io.Read(ctx, *tab.MetadataLocation)
		if err != nil {
			return nil, err
		}
		current = &m
	}

	return &lockedTabular{tab: tab, wh: wh, profile: profile, io: io, current: current}, nil
}

// buildLoadTableResult assembles the wire-shaped response, vending
// credentials only when requested.
func (e *CommitEngine) buildLoadTableResult(ctx context.Context, w *catalogstore.Warehouse, profile storageprofile.Profile, metadataLocation string, m metadata.TableMetadata, access DataAccess, write bool) (*LoadTableResult, error) {
	result := &LoadTableResult{
		MetadataLocation: metadataLocation,
		Metadata:         m,
		ETag:             metadata.ETag(metadataLocation),
	}
	if access == DataAccessVended {
		cfg, err := e.vendCredentials(ctx, w, profile, m.Location, write)
		if err != nil {
			return nil, err
		}
		result.Config = cfg
	}
	return result, nil
}

// appendHistoryAndFire records the commit to the audit trail and fans the
// event out to hooks. Both happen after the write transaction commits and
// neither failure is propagated to the caller. The commit already
// succeeded durably; history and hooks are best-effort side channels.
func (e *CommitEngine) appendHistoryAndFire(ctx context.Context, tabularID ids.TabularID, metadataLocation string, sequenceNumber int64, warehouse ids.WarehouseID, event EventKind) {
	if e.history != nil {
		if err := e.history.Append(ctx, tabularID, metadataLocation, sequenceNumber); err != nil {
			logging.For("iceberg").Warnf("history append for %s failed: %v", tabularID, err)
		}
	}
	e.hooks.Fire(ctx, Event{Kind: event, Warehouse: warehouse, Tabular: tabularID})
}
