package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

type StatisticsRepo struct{}

func NewStatisticsRepo() StatisticsRepo { return StatisticsRepo{} }

// IncrementCommit bumps the per-warehouse commit counter; the statistics
// queue's handler calls this from a commit_table hook to aggregate
// per-warehouse usage counters.
func (StatisticsRepo) IncrementCommit(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID, tabular ids.TabularID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO warehouse_statistics (warehouse_id, commit_count, last_tabular_id, updated_at)
		VALUES ($1, 1, $2, now())
		ON CONFLICT (warehouse_id) DO UPDATE
		SET commit_count = warehouse_statistics.commit_count + 1,
		    last_tabular_id = EXCLUDED.last_tabular_id,
		    updated_at = now()
	`, warehouse, tabular)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: increment commit statistic: %w", err)
	}
	return nil
}

func (StatisticsRepo) GetWarehouseStatistics(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID) (map[string]int64, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	var commitCount int64
	row := pt.QueryRow(ctx, `SELECT commit_count FROM warehouse_statistics WHERE warehouse_id = $1`, warehouse)
	if err := row.Scan(&commitCount); err != nil {
		if err == pgx.ErrNoRows {
			return map[string]int64{"commit_count": 0}, nil
		}
		return nil, fmt.Errorf("catalogstore/postgres: get warehouse statistics: %w", err)
	}
	return map[string]int64{"commit_count": commitCount}, nil
}
