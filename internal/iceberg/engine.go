package iceberg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog.icecat.io/internal/cache"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/catalogstore/history"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/storageprofile"
)

// Queue names the task-queue operations this engine enqueues into.
// internal/taskqueue's registry owns the handlers for these; this package
// only needs the names to call TaskRepo.Enqueue with the right QueueName.
const (
	QueueTabularExpiration = "tabular_expiration"
	QueueTabularPurge      = "tabular_purge"
)

// CommitEngine implements every table/view lifecycle operation the REST
// Catalog protocol exposes: create, register, load, commit (single and
// multi-table transaction), drop, rename, and undrop. It is the one place
// catalogstore, storageprofile, and iceberg/metadata meet.
type CommitEngine struct {
	txr        catalogstore.Transactor
	warehouses catalogstore.WarehouseRepo
	namespaces catalogstore.NamespaceRepo
	tabulars   catalogstore.TabularRepo
	tasks      catalogstore.TaskRepo
	history    *history.Store
	metadataIO map[storageprofile.Kind]MetadataIO
	vendors    map[storageprofile.Kind]storageprofile.Vendor
	stc        *cache.STCCache
	hooks      Hooks
	clock      func() time.Time
}

// Config bundles CommitEngine's dependencies for New. Authorization is not
// one of them: every exported operation takes an authz.Authorizer and
// authz.Metadata as call parameters (like catalogstore.Tx, these are
// per-request, not per-engine state) and calls authz.Require*Action
// directly before touching the store.
type Config struct {
	Transactor  catalogstore.Transactor
	Warehouses  catalogstore.WarehouseRepo
	Namespaces  catalogstore.NamespaceRepo
	Tabulars    catalogstore.TabularRepo
	Tasks       catalogstore.TaskRepo
	History     *history.Store
	MetadataIO  map[storageprofile.Kind]MetadataIO
	Vendors     map[storageprofile.Kind]storageprofile.Vendor
	STCCache    *cache.STCCache
	Hooks       Hooks
	Clock       func() time.Time
}

func New(cfg Config) *CommitEngine {
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NoopHooks{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &CommitEngine{
		txr:        cfg.Transactor,
		warehouses: cfg.Warehouses,
		namespaces: cfg.Namespaces,
		tabulars:   cfg.Tabulars,
		tasks:      cfg.Tasks,
		history:    cfg.History,
		metadataIO: cfg.MetadataIO,
		vendors:    cfg.Vendors,
		stc:        cfg.STCCache,
		hooks:      hooks,
		clock:      clock,
	}
}

func (e *CommitEngine) loadActiveWarehouse(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID) (*catalogstore.Warehouse, error) {
	w, err := e.warehouses.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, icebergerr.WarehouseIDNotFound(id)
	}
	return w, nil
}

// requireWritable enforces that an inactive warehouse rejects every write
// operation (create/commit/drop/rename), while reads (load) still
// succeed.
func (e *CommitEngine) requireWritable(w *catalogstore.Warehouse) error {
	if !warehouseAcceptsWrites(w) {
		return icebergerr.WarehouseActionForbidden("warehouse is not active")
	}
	return nil
}

func (e *CommitEngine) profileFor(w *catalogstore.Warehouse) (storageprofile.Profile, error) {
	return storageprofile.Decode(storageprofile.Kind(w.StorageProfileKind), w.StorageProfileJSON)
}

func (e *CommitEngine) metadataIOFor(kind storageprofile.Kind) (MetadataIO, error) {
	io, ok := e.metadataIO[kind]
	if !ok {
		return nil, icebergerr.BackendUnavailable(string(kind), fmt.Errorf("no metadata I/O backend configured"))
	}
	return io, nil
}

func (e *CommitEngine) vendorFor(kind storageprofile.Kind) (storageprofile.Vendor, error) {
	v, ok := e.vendors[kind]
	if !ok {
		return nil, icebergerr.BackendUnavailable(string(kind), fmt.Errorf("no credential vendor configured"))
	}
	return v, nil
}

// vendCredentials resolves a Config map for LoadTableResult when the
// caller asked for vended-credentials, going through the STC cache so
// concurrent loads of the same tabular share one vendor call.
func (e *CommitEngine) vendCredentials(ctx context.Context, w *catalogstore.Warehouse, profile storageprofile.Profile, location string, write bool) (map[string]string, error) {
	vendor, err := e.vendorFor(profile.Kind())
	if err != nil {
		return nil, err
	}
	fingerprint := cache.Fingerprint(w.WarehouseID.String(), location, string(profile.Kind()), boolString(write))
	payload, err := e.stc.GetOrVend(ctx, fingerprint, 55*time.Minute, func(ctx context.Context) (json.RawMessage, error) {
		cred, err := vendor.Vend(ctx, profile, storageprofile.VendRequest{
			Location:   location,
			Write:      write,
			SessionTag: w.WarehouseID.String(),
		})
		if err != nil {
			return nil, err
		}
		return cred.Payload, nil
	})
	if err != nil {
		return nil, err
	}
	return flattenCredentialJSON(payload)
}

func boolString(b bool) string {
	if b {
		return "write"
	}
	return "read"
}

// flattenCredentialJSON turns a vendor's JSON credential payload (e.g.
// {"s3.access-key-id": "...", "s3.secret-access-key": "..."}) into the
// string map LoadTableResult.Config carries on the wire.
func flattenCredentialJSON(payload json.RawMessage) (map[string]string, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("iceberg: decoding vended credential payload: %w", err)
	}
	return m, nil
}
