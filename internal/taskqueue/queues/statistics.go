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

// statisticsPayload is what a commit_table hook enqueues: the tabular the
// commit landed on, so the handler can bump that warehouse's counter.
type statisticsPayload struct {
	TabularID string `json:"tabular_id"`
}

// StatisticsHandler implements the statistics queue: rolls one commit
// hook firing into catalogstore's per-warehouse commit counter.
type StatisticsHandler struct {
	Transactor catalogstore.Transactor
	Statistics catalogstore.StatisticsRepo
}

func (h *StatisticsHandler) QueueName() string { return taskqueue.QueueNameStatistics }

func (h *StatisticsHandler) Handle(ctx context.Context, task *catalogstore.Task, _ taskqueue.Heartbeater) error {
	var payload statisticsPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("taskqueue/queues: decode statistics payload: %w", err)
	}
	tabularID, err := ids.ParseTabularID(payload.TabularID)
	if err != nil {
		return fmt.Errorf("taskqueue/queues: parse tabular id: %w", err)
	}

	tx, err := h.Transactor.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := h.Statistics.IncrementCommit(ctx, tx, task.WarehouseID, tabularID); err != nil {
		return fmt.Errorf("taskqueue/queues: increment commit statistic: %w", err)
	}
	return tx.Commit(ctx)
}

// StatisticsEventInput builds the TaskInput a commit hook enqueues for one
// commit. Each commit is distinct, so the idempotency key folds in the
// task that triggered it rather than a shared per-day bucket, avoiding the
// upsert-based Enqueue collapsing two different commits' increments into
// one no-op retry.
func StatisticsEventInput(warehouse ids.WarehouseID, tabular ids.TabularID, triggeringTaskID ids.TaskID) (catalogstore.TaskInput, error) {
	payload, err := json.Marshal(statisticsPayload{TabularID: tabular.String()})
	if err != nil {
		return catalogstore.TaskInput{}, fmt.Errorf("taskqueue/queues: marshal statistics payload: %w", err)
	}
	return catalogstore.TaskInput{
		QueueName:      taskqueue.QueueNameStatistics,
		WarehouseID:    warehouse,
		EntityKind:     catalogstore.TaskEntityTabular,
		EntityID:       tabular.String(),
		ScheduledFor:   time.Now(),
		Payload:        payload,
		IdempotencyKey: ids.TaskIdempotencyKey(warehouse, taskqueue.QueueNameStatistics, triggeringTaskID.String()),
	}, nil
}
