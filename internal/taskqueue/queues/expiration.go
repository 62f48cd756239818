// Package queues holds the taskqueue.Handler implementation for each of
// the catalog's built-in queues, one file per queue rather than a single
// generic dispatcher.
package queues

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/logging"
	"catalog.icecat.io/internal/taskqueue"
)

var log = logging.For("taskqueue/queues")

// expirationPayload mirrors internal/iceberg's own expirationPayload JSON
// shape. The two packages don't share the type, to avoid a dependency
// from iceberg, which only ever writes this payload, onto taskqueue,
// which only ever reads it.
type expirationPayload struct {
	TabularID      string `json:"tabular_id"`
	Location       string `json:"location"`
	PurgeRequested bool   `json:"purge_requested"`
}

// ExpirationHandler implements the tabular_expiration queue: at its
// scheduled time it hard-deletes the (already soft-deleted) tabular row
// and, if purge was requested at drop time, enqueues tabular_purge for its
// location.
type ExpirationHandler struct {
	Transactor catalogstore.Transactor
	Tabulars   catalogstore.TabularRepo
	Tasks      catalogstore.TaskRepo
}

func (h *ExpirationHandler) QueueName() string { return taskqueue.QueueNameTabularExpiration }

func (h *ExpirationHandler) Handle(ctx context.Context, task *catalogstore.Task, _ taskqueue.Heartbeater) error {
	var payload expirationPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("taskqueue/queues: decode expiration payload: %w", err)
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

	tab, err := h.Tabulars.Get(ctx, tx, tabularID)
	if err != nil {
		return err
	}
	if tab == nil {
		log.WithField("tabular_id", payload.TabularID).Info("expiration target already gone, skipping")
		return tx.Commit(ctx)
	}
	if err := h.Tabulars.HardDelete(ctx, tx, tabularID); err != nil {
		return fmt.Errorf("taskqueue/queues: hard delete expired tabular: %w", err)
	}

	var purgeTaskID ids.TaskID
	if payload.PurgeRequested {
		purgeInput := catalogstore.TaskInput{
			QueueName:      taskqueue.QueueNameTabularPurge,
			WarehouseID:    task.WarehouseID,
			EntityKind:     catalogstore.TaskEntityTabular,
			EntityID:       payload.TabularID,
			ScheduledFor:   task.ScheduledFor,
			Payload:        mustMarshalPurge(payload.Location),
			ParentTaskID:   &task.TaskID,
			IdempotencyKey: ids.TaskIdempotencyKey(task.WarehouseID, taskqueue.QueueNameTabularPurge, payload.TabularID),
		}
		purgeTaskID, err = h.Tasks.Enqueue(ctx, tx, purgeInput)
		if err != nil {
			return fmt.Errorf("taskqueue/queues: enqueue follow-up purge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if payload.PurgeRequested {
		log.WithField("tabular_id", payload.TabularID).Infof("expired tabular, enqueued purge task %s", purgeTaskID)
	}
	return nil
}

func mustMarshalPurge(location string) json.RawMessage {
	b, _ := json.Marshal(purgePayload{Location: location})
	return b
}
