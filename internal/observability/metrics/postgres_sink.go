package metrics

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
)

// PostgresSink flushes counters into catalogstore's endpoint_statistics
// table, one write transaction per flush.
type PostgresSink struct {
	Transactor catalogstore.Transactor
	Repo       catalogstore.EndpointStatisticsRepo
}

func (s *PostgresSink) Flush(ctx context.Context, counts map[Stat]int64) error {
	increments := make([]catalogstore.EndpointStatisticIncrement, 0, len(counts))
	for stat, count := range counts {
		increments = append(increments, catalogstore.EndpointStatisticIncrement{
			ProjectID:   stat.ProjectID,
			EndpointID:  stat.EndpointID,
			WarehouseID: stat.WarehouseID,
			StatusCode:  stat.StatusCode,
			Count:       count,
		})
	}

	tx, err := s.Transactor.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("observability/metrics: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Repo.IncrementMany(ctx, tx, increments); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
