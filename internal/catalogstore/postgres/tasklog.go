package postgres

import (
	"context"
	"fmt"
	"time"

	"catalog.icecat.io/internal/catalogstore"
)

type TaskLogRepo struct{}

func NewTaskLogRepo() TaskLogRepo { return TaskLogRepo{} }

func (TaskLogRepo) Append(ctx context.Context, tx catalogstore.Tx, entry catalogstore.TaskLog) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO task_log (task_id, attempt, queue_name, warehouse_id, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, entry.TaskID, entry.Attempt, entry.QueueName, entry.WarehouseID, entry.Status, entry.Message)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: append task log: %w", err)
	}
	return nil
}

// DeleteOlderThan is the statement the task_log_cleanup queue's handler
// runs on each self-scheduled tick.
func (TaskLogRepo) DeleteOlderThan(ctx context.Context, tx catalogstore.Tx, before time.Time) (int64, error) {
	pt, err := asTx(tx)
	if err != nil {
		return 0, err
	}
	tag, err := pt.Exec(ctx, `DELETE FROM task_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("catalogstore/postgres: delete old task logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
