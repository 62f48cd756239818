package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

type QueueConfigRepo struct{}

func NewQueueConfigRepo() QueueConfigRepo { return QueueConfigRepo{} }

func (QueueConfigRepo) Upsert(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID, queueName string, config json.RawMessage) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO queue_config (warehouse_id, queue_name, config)
		VALUES ($1, $2, $3)
		ON CONFLICT (warehouse_id, queue_name) DO UPDATE SET config = EXCLUDED.config
	`, warehouse, queueName, config)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: upsert queue config: %w", err)
	}
	return nil
}

func (QueueConfigRepo) Get(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID, queueName string) (*catalogstore.QueueConfigRow, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `
		SELECT warehouse_id, queue_name, config FROM queue_config
		WHERE warehouse_id = $1 AND queue_name = $2
	`, warehouse, queueName)
	var out catalogstore.QueueConfigRow
	if err := row.Scan(&out.WarehouseID, &out.QueueName, &out.Config); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("catalogstore/postgres: get queue config: %w", err)
	}
	return &out, nil
}

func (QueueConfigRepo) ListForWarehouse(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID) ([]catalogstore.QueueConfigRow, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	rows, err := pt.Query(ctx, `
		SELECT warehouse_id, queue_name, config FROM queue_config WHERE warehouse_id = $1
	`, warehouse)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: list queue config: %w", err)
	}
	defer rows.Close()

	var out []catalogstore.QueueConfigRow
	for rows.Next() {
		var row catalogstore.QueueConfigRow
		if err := rows.Scan(&row.WarehouseID, &row.QueueName, &row.Config); err != nil {
			return nil, fmt.Errorf("catalogstore/postgres: scan queue config: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: list queue config: %w", err)
	}
	return out, nil
}
