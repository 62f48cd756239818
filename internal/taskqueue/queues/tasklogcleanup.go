package queues

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/taskqueue"
)

// taskLogCleanupPayload carries the retention window and the period at
// which the task re-schedules its own next run.
type taskLogCleanupPayload struct {
	RetentionSeconds int64 `json:"retention_seconds"`
	PeriodSeconds    int64 `json:"period_seconds"`
}

const (
	defaultTaskLogRetention = 30 * 24 * time.Hour
	defaultTaskLogPeriod    = 24 * time.Hour
)

// TaskLogCleanupHandler implements the task_log_cleanup queue: on each run
// it deletes every task_log row older than its retention window, then
// enqueues its own successor so the queue never runs dry, the same
// self-perpetuating shape a cron-less deployment needs for a recurring
// maintenance job with no external scheduler.
type TaskLogCleanupHandler struct {
	Transactor catalogstore.Transactor
	TaskLogs   catalogstore.TaskLogRepo
	Tasks      catalogstore.TaskRepo
}

func (h *TaskLogCleanupHandler) QueueName() string { return taskqueue.QueueNameTaskLogCleanup }

func (h *TaskLogCleanupHandler) Handle(ctx context.Context, task *catalogstore.Task, _ taskqueue.Heartbeater) error {
	payload := taskLogCleanupPayload{
		RetentionSeconds: int64(defaultTaskLogRetention.Seconds()),
		PeriodSeconds:    int64(defaultTaskLogPeriod.Seconds()),
	}
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("taskqueue/queues: decode task log cleanup payload: %w", err)
		}
	}
	if payload.RetentionSeconds <= 0 {
		payload.RetentionSeconds = int64(defaultTaskLogRetention.Seconds())
	}
	if payload.PeriodSeconds <= 0 {
		payload.PeriodSeconds = int64(defaultTaskLogPeriod.Seconds())
	}

	tx, err := h.Transactor.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	before := time.Now().Add(-time.Duration(payload.RetentionSeconds) * time.Second)
	deleted, err := h.TaskLogs.DeleteOlderThan(ctx, tx, before)
	if err != nil {
		return fmt.Errorf("taskqueue/queues: delete old task logs: %w", err)
	}

	nextRun := time.Now().Add(time.Duration(payload.PeriodSeconds) * time.Second)
	nextPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("taskqueue/queues: marshal next cleanup payload: %w", err)
	}
	_, err = h.Tasks.Enqueue(ctx, tx, catalogstore.TaskInput{
		QueueName:      taskqueue.QueueNameTaskLogCleanup,
		WarehouseID:    task.WarehouseID,
		EntityKind:     catalogstore.TaskEntityWarehouse,
		EntityID:       task.WarehouseID.String(),
		ScheduledFor:   nextRun,
		Payload:        nextPayload,
		IdempotencyKey: ids.TaskIdempotencyKey(task.WarehouseID, taskqueue.QueueNameTaskLogCleanup, nextRun.String()),
	})
	if err != nil {
		return fmt.Errorf("taskqueue/queues: reschedule task log cleanup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.WithField("deleted", deleted).Infof("task log cleanup deleted %d rows, next run scheduled at %s", deleted, nextRun)
	return nil
}
