package postgres

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
)

// EndpointStatisticsRepo persists the endpoint-statistics tracker's
// periodic flush into one row per (project, endpoint, warehouse,
// status_code) tuple.
type EndpointStatisticsRepo struct{}

func NewEndpointStatisticsRepo() EndpointStatisticsRepo { return EndpointStatisticsRepo{} }

func (EndpointStatisticsRepo) IncrementMany(ctx context.Context, tx catalogstore.Tx, counts []catalogstore.EndpointStatisticIncrement) error {
	if len(counts) == 0 {
		return nil
	}
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	for _, c := range counts {
		_, err := pt.Exec(ctx, `
			INSERT INTO endpoint_statistics (project_id, endpoint_id, warehouse_id, status_code, request_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (project_id, endpoint_id, warehouse_id, status_code)
			DO UPDATE SET request_count = endpoint_statistics.request_count + EXCLUDED.request_count, updated_at = now()
		`, c.ProjectID, c.EndpointID, c.WarehouseID, c.StatusCode, c.Count)
		if err != nil {
			return fmt.Errorf("catalogstore/postgres: increment endpoint statistic: %w", err)
		}
	}
	return nil
}
