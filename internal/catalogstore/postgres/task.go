package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

type TaskRepo struct{}

func NewTaskRepo() TaskRepo { return TaskRepo{} }

const taskColumns = `
	task_id, queue_name, warehouse_id, entity_kind, entity_id, status, attempt,
	scheduled_for, picked_up_at, last_heartbeat_at, payload, execution_details,
	parent_task_id, idempotency_key, created_at`

func scanTask(row pgx.Row) (*catalogstore.Task, error) {
	var t catalogstore.Task
	err := row.Scan(
		&t.TaskID, &t.QueueName, &t.WarehouseID, &t.EntityKind, &t.EntityID, &t.Status, &t.Attempt,
		&t.ScheduledFor, &t.PickedUpAt, &t.LastHeartbeatAt, &t.Payload, &t.ExecutionDetails,
		&t.ParentTaskID, &t.IdempotencyKey, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// mergeHeartbeatDetails folds progress into details as a "progress" field,
// so a single JSONB column carries both without a dedicated task column.
func mergeHeartbeatDetails(progress int, details []byte) ([]byte, error) {
	merged := map[string]interface{}{}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &merged); err != nil {
			return nil, fmt.Errorf("unmarshaling execution details: %w", err)
		}
	}
	merged["progress"] = progress
	return json.Marshal(merged)
}

// Enqueue is an idempotent upsert keyed by IdempotencyKey: at most one
// non-terminal task exists per (warehouse, queue, natural key). A
// conflicting insert resolves by returning the existing row's id instead
// of erroring. The uniqueness is enforced by a partial unique index on
// idempotency_key WHERE status NOT IN (terminal statuses), applied in the
// migration for this table.
func (TaskRepo) Enqueue(ctx context.Context, tx catalogstore.Tx, input catalogstore.TaskInput) (ids.TaskID, error) {
	pt, err := asTx(tx)
	if err != nil {
		return ids.TaskID{}, err
	}

	taskID := ids.NewTaskID()
	row := pt.QueryRow(ctx, `
		INSERT INTO task (
			task_id, queue_name, warehouse_id, entity_kind, entity_id, status, attempt,
			scheduled_for, payload, parent_task_id, idempotency_key
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key) WHERE status NOT IN ('success', 'failed', 'cancelled')
		DO UPDATE SET idempotency_key = task.idempotency_key
		RETURNING task_id
	`, taskID, input.QueueName, input.WarehouseID, input.EntityKind, input.EntityID,
		catalogstore.TaskScheduled, input.ScheduledFor, input.Payload, input.ParentTaskID, input.IdempotencyKey)

	var resultID ids.TaskID
	if err := row.Scan(&resultID); err != nil {
		return ids.TaskID{}, fmt.Errorf("catalogstore/postgres: enqueue task: %w", err)
	}
	return resultID, nil
}

// PickNewTask atomically claims one task in queueName that is either newly
// scheduled or a heartbeat-stalled zombie, using SKIP LOCKED so concurrent
// workers never block on each other. Candidates are ordered FIFO by
// (scheduled_for, created_at) so tasks scheduled for the same instant are
// picked in the order they were enqueued.
func (TaskRepo) PickNewTask(ctx context.Context, tx catalogstore.Tx, queueName string, maxTimeSinceHeartbeat time.Duration) (*catalogstore.Task, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	row := pt.QueryRow(ctx, `
		WITH candidate AS (
			SELECT task_id FROM task
			WHERE queue_name = $1
			  AND (
			    (status = 'scheduled' AND scheduled_for <= now())
			    OR (status IN ('running', 'stopping') AND now() - last_heartbeat_at > $2 * interval '1 second')
			  )
			ORDER BY scheduled_for, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE task
		SET status = 'running', attempt = task.attempt + 1, picked_up_at = now(), last_heartbeat_at = now()
		FROM candidate
		WHERE task.task_id = candidate.task_id
		RETURNING `+taskColumns,
		queueName, maxTimeSinceHeartbeat.Seconds())
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("catalogstore/postgres: pick new task: %w", err)
	}
	return t, nil
}

// Heartbeat records liveness and progress, and reports whether stop_tasks
// has asked this attempt to cooperatively terminate. progress is folded
// into execution_details rather than given its own column.
func (TaskRepo) Heartbeat(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, progress int, details []byte) (catalogstore.TaskCheckState, error) {
	pt, err := asTx(tx)
	if err != nil {
		return "", err
	}
	merged, err := mergeHeartbeatDetails(progress, details)
	if err != nil {
		return "", fmt.Errorf("catalogstore/postgres: heartbeat: %w", err)
	}
	var status catalogstore.TaskStatus
	row := pt.QueryRow(ctx, `
		UPDATE task SET last_heartbeat_at = now(), execution_details = $2
		WHERE task_id = $1
		RETURNING status
	`, taskID, merged)
	if err := row.Scan(&status); err != nil {
		return "", fmt.Errorf("catalogstore/postgres: heartbeat: %w", err)
	}
	if status == catalogstore.TaskShouldStop {
		_, err := pt.Exec(ctx, `UPDATE task SET status = 'stopping' WHERE task_id = $1`, taskID)
		if err != nil {
			return "", fmt.Errorf("catalogstore/postgres: transition to stopping: %w", err)
		}
		return catalogstore.TaskCheckShouldStop, nil
	}
	return catalogstore.TaskCheckContinue, nil
}

func (TaskRepo) RecordSuccess(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `UPDATE task SET status = 'success' WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: record success: %w", err)
	}
	return nil
}

// RecordFailure re-schedules with exponential backoff (base * 2^attempt,
// capped at 1 hour) while attempt < maxRetries, else marks the task
// terminally Failed.
func (TaskRepo) RecordFailure(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, errDetails string, maxRetries int) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}

	var attempt int
	if err := pt.QueryRow(ctx, `SELECT attempt FROM task WHERE task_id = $1`, taskID).Scan(&attempt); err != nil {
		return fmt.Errorf("catalogstore/postgres: read attempt: %w", err)
	}

	if attempt < maxRetries {
		backoff := backoffFor(attempt)
		_, err = pt.Exec(ctx, `
			UPDATE task SET status = 'scheduled', scheduled_for = now() + $2 * interval '1 second'
			WHERE task_id = $1
		`, taskID, backoff.Seconds())
		if err != nil {
			return fmt.Errorf("catalogstore/postgres: reschedule after failure: %w", err)
		}
		return nil
	}

	_, err = pt.Exec(ctx, `UPDATE task SET status = 'failed' WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: mark task failed: %w", err)
	}
	return nil
}

const (
	baseBackoff = 2 * time.Second
	maxBackoff  = time.Hour
)

func backoffFor(attempt int) time.Duration {
	d := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (TaskRepo) RequestStop(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE task SET status = 'should_stop'
		WHERE task_id = $1 AND status IN ('scheduled', 'running')
	`, taskID)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: request stop: %w", err)
	}
	return nil
}

// Cancel converts matching non-terminal tasks to Cancelled. When
// cancelRunning is false, only Scheduled tasks are affected; when true,
// Running/Stopping tasks are also signalled via should_stop first and left
// for the worker to observe on its next heartbeat rather than cancelled
// out from under it.
func (TaskRepo) Cancel(ctx context.Context, tx catalogstore.Tx, queueName string, warehouse *ids.WarehouseID, entityID *string, cancelRunning bool) (int, error) {
	pt, err := asTx(tx)
	if err != nil {
		return 0, err
	}

	tag, err := pt.Exec(ctx, `
		UPDATE task SET status = 'cancelled'
		WHERE status = 'scheduled'
		  AND ($1 = '' OR queue_name = $1)
		  AND ($2::uuid IS NULL OR warehouse_id = $2)
		  AND ($3::text IS NULL OR entity_id = $3)
	`, queueName, warehouse, entityID)
	if err != nil {
		return 0, fmt.Errorf("catalogstore/postgres: cancel scheduled tasks: %w", err)
	}
	cancelled := int(tag.RowsAffected())

	if cancelRunning {
		tag, err = pt.Exec(ctx, `
			UPDATE task SET status = 'should_stop'
			WHERE status IN ('running', 'stopping')
			  AND ($1 = '' OR queue_name = $1)
			  AND ($2::uuid IS NULL OR warehouse_id = $2)
			  AND ($3::text IS NULL OR entity_id = $3)
		`, queueName, warehouse, entityID)
		if err != nil {
			return cancelled, fmt.Errorf("catalogstore/postgres: signal running tasks to stop: %w", err)
		}
		cancelled += int(tag.RowsAffected())
	}
	return cancelled, nil
}

func (TaskRepo) RunAt(ctx context.Context, tx catalogstore.Tx, taskIDs []ids.TaskID, when time.Time) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE task SET scheduled_for = $2
		WHERE task_id = ANY($1) AND status IN ('scheduled', 'stopping')
	`, taskIDs, when)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: run tasks at: %w", err)
	}
	return nil
}

func (TaskRepo) Get(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) (*catalogstore.Task, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `SELECT `+taskColumns+` FROM task WHERE task_id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get task: %w", err)
	}
	return t, nil
}
