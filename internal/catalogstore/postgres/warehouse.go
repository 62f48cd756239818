package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
)

type WarehouseRepo struct{}

func NewWarehouseRepo() WarehouseRepo { return WarehouseRepo{} }

func (WarehouseRepo) Create(ctx context.Context, tx catalogstore.Tx, w catalogstore.Warehouse) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	softDeleteSeconds := int64(w.SoftDeleteTTL / time.Second)
	_, err = pt.Exec(ctx, `
		INSERT INTO warehouse (
			warehouse_id, project_id, name, storage_profile_kind, storage_profile,
			storage_secret_id, tabular_delete_mode, status, soft_delete_ttl_seconds,
			metadata_log_max_entries, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	`, w.WarehouseID, w.ProjectID, w.Name, w.StorageProfileKind, w.StorageProfileJSON,
		w.StorageSecretID, w.TabularDeleteMode, w.Status, softDeleteSeconds, w.MetadataLogMaxEntries)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: create warehouse: %w", err)
	}
	return nil
}

func scanWarehouse(row pgx.Row) (*catalogstore.Warehouse, error) {
	var w catalogstore.Warehouse
	var softDeleteSeconds int64
	err := row.Scan(
		&w.WarehouseID, &w.ProjectID, &w.Name, &w.StorageProfileKind, &w.StorageProfileJSON,
		&w.StorageSecretID, &w.TabularDeleteMode, &w.Status, &softDeleteSeconds,
		&w.MetadataLogMaxEntries, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.SoftDeleteTTL = time.Duration(softDeleteSeconds) * time.Second
	return &w, nil
}

const warehouseColumns = `
	warehouse_id, project_id, name, storage_profile_kind, storage_profile,
	storage_secret_id, tabular_delete_mode, status, soft_delete_ttl_seconds,
	metadata_log_max_entries, created_at`

func (WarehouseRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID) (*catalogstore.Warehouse, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouse WHERE warehouse_id = $1`, id)
	w, err := scanWarehouse(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get warehouse: %w", err)
	}
	return w, nil
}

func (WarehouseRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `DELETE FROM warehouse WHERE warehouse_id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: delete warehouse: %w", err)
	}
	return nil
}

func (WarehouseRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID, name string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `UPDATE warehouse SET name = $2 WHERE warehouse_id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: rename warehouse: %w", err)
	}
	return nil
}

// SetStatus toggles Active/Inactive. Inactive rejects all writes except
// lifecycle operations, enforced by callers, not this repo.
func (WarehouseRepo) SetStatus(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID, status catalogstore.WarehouseStatus) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `UPDATE warehouse SET status = $2 WHERE warehouse_id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: set warehouse status: %w", err)
	}
	return nil
}

func (WarehouseRepo) SetStorageProfile(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID, kind catalogstore.StorageProfileKind, profileJSON []byte, secretID *string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE warehouse SET storage_profile_kind = $2, storage_profile = $3, storage_secret_id = $4
		WHERE warehouse_id = $1
	`, id, kind, profileJSON, secretID)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: set storage profile: %w", err)
	}
	return nil
}

func (WarehouseRepo) List(ctx context.Context, tx catalogstore.Tx, project ids.ProjectID, pageSize int, token *pagination.Token) ([]catalogstore.Warehouse, *pagination.Token, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, nil, err
	}
	pageSize = pagination.ClampPageSize(pageSize)

	var rows pgx.Rows
	if token == nil {
		rows, err = pt.Query(ctx, `
			SELECT `+warehouseColumns+` FROM warehouse WHERE project_id = $1
			ORDER BY created_at, warehouse_id LIMIT $2
		`, project, pageSize+1)
	} else {
		rows, err = pt.Query(ctx, `
			SELECT `+warehouseColumns+` FROM warehouse
			WHERE project_id = $1 AND (created_at, warehouse_id) > ($2, $3)
			ORDER BY created_at, warehouse_id LIMIT $4
		`, project, token.CreatedAt, token.ID, pageSize+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("catalogstore/postgres: list warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []catalogstore.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("catalogstore/postgres: scan warehouse: %w", err)
		}
		warehouses = append(warehouses, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *pagination.Token
	if len(warehouses) > pageSize {
		warehouses = warehouses[:pageSize]
		last := warehouses[len(warehouses)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.WarehouseID)}
	}
	return warehouses, next, nil
}
