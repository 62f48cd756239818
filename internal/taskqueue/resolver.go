package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

// CatalogResolver is the Resolver backed by catalogstore's queue_config
// table: a per-warehouse override, falling back to a package-level
// default when no row exists.
type CatalogResolver struct {
	Transactor  catalogstore.Transactor
	QueueConfig catalogstore.QueueConfigRepo
	Defaults    *StaticResolver
}

func NewCatalogResolver(txr catalogstore.Transactor, repo catalogstore.QueueConfigRepo) *CatalogResolver {
	return &CatalogResolver{Transactor: txr, QueueConfig: repo, Defaults: NewStaticResolver()}
}

// Resolve looks up a per-warehouse override; Pool never calls this with a
// warehouse-scoped context (it resolves once per queue at startup), so the
// override lookup instead happens via ResolveForWarehouse, called by
// handlers that need a specific warehouse's tuning rather than the
// process-wide poll loop's.
func (r *CatalogResolver) Resolve(queueName string, warehouseOverride *QueueConfig) QueueConfig {
	return r.Defaults.Resolve(queueName, warehouseOverride)
}

// ResolveForWarehouse reads queue_config for (warehouse, queueName) and
// merges it onto the package default, falling back entirely to the
// default when no override row exists or the warehouse carries none.
func (r *CatalogResolver) ResolveForWarehouse(ctx context.Context, warehouse ids.WarehouseID, queueName string) (QueueConfig, error) {
	def := r.Defaults.Resolve(queueName, nil)

	tx, err := r.Transactor.BeginRead(ctx)
	if err != nil {
		return def, fmt.Errorf("taskqueue: begin read for queue config: %w", err)
	}
	defer tx.Rollback(ctx)

	row, err := r.QueueConfig.Get(ctx, tx, warehouse, queueName)
	if err != nil {
		return def, fmt.Errorf("taskqueue: get queue config: %w", err)
	}
	if row == nil {
		return def, nil
	}
	override := def
	if err := json.Unmarshal(row.Config, &override); err != nil {
		return def, fmt.Errorf("taskqueue: decode queue config override: %w", err)
	}
	return override, nil
}
