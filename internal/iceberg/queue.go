package iceberg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

// expirationPayload is tabular_expiration's queue-specific JSON payload.
type expirationPayload struct {
	TabularID      string `json:"tabular_id"`
	Location       string `json:"location"`
	PurgeRequested bool   `json:"purge_requested"`
}

func (e *CommitEngine) enqueueExpiration(ctx context.Context, tx catalogstore.Tx, w *catalogstore.Warehouse, tab *catalogstore.Tabular, purge bool) (ids.TaskID, error) {
	payload, err := json.Marshal(expirationPayload{TabularID: tab.TabularID.String(), Location: tab.Location, PurgeRequested: purge})
	if err != nil {
		return ids.TaskID{}, fmt.Errorf("iceberg: marshal expiration payload: %w", err)
	}
	input := catalogstore.TaskInput{
		QueueName:      QueueTabularExpiration,
		WarehouseID:    w.WarehouseID,
		EntityKind:     catalogstore.TaskEntityTabular,
		EntityID:       tab.TabularID.String(),
		ScheduledFor:   e.clock().Add(w.SoftDeleteTTL),
		Payload:        payload,
		IdempotencyKey: ids.TaskIdempotencyKey(w.WarehouseID, QueueTabularExpiration, tab.TabularID.String()),
	}
	return e.tasks.Enqueue(ctx, tx, input)
}

// purgePayload is tabular_purge's queue-specific JSON payload.
type purgePayload struct {
	Location string `json:"location"`
}

func (e *CommitEngine) enqueuePurge(ctx context.Context, tx catalogstore.Tx, w *catalogstore.Warehouse, tab *catalogstore.Tabular) (ids.TaskID, error) {
	payload, err := json.Marshal(purgePayload{Location: tab.Location})
	if err != nil {
		return ids.TaskID{}, fmt.Errorf("iceberg: marshal purge payload: %w", err)
	}
	input := catalogstore.TaskInput{
		QueueName:      QueueTabularPurge,
		WarehouseID:    w.WarehouseID,
		EntityKind:     catalogstore.TaskEntityTabular,
		EntityID:       tab.TabularID.String(),
		ScheduledFor:   e.clock(),
		Payload:        payload,
		IdempotencyKey: ids.TaskIdempotencyKey(w.WarehouseID, QueueTabularPurge, tab.TabularID.String()),
	}
	return e.tasks.Enqueue(ctx, tx, input)
}

// CommitTransaction implements commit_transaction: every table_changes
// entry is applied inside one write transaction, all or nothing. Row locks
// are acquired in ascending uuid.UUID byte order (not request order) so
// two overlapping transactions touching an overlapping set of tables can
// never deadlock against each other.
func (e *CommitEngine) CommitTransaction(ctx context.Context, authorizer authz.Authorizer, meta authz.Metadata, req CommitTransactionRequest) ([]*CommitTableResponse, error) {
	for _, change := range req.TableChanges {
		if err := authz.RequireTableAction(ctx, authorizer, meta, change.TabularID, authz.TableCommit); err != nil {
			return nil, err
		}
	}

	ordered := append([]TransactionTableChange(nil), req.TableChanges...)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(uuidBytes(ordered[i].TabularID), uuidBytes(ordered[j].TabularID)) < 0
	})

	tx, err := e.txr.BeginWrite(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	results := make([]*CommitTableResponse, len(ordered))
	now := e.clock()
	for i, change := range ordered {
		locked, err := e.lockAndLoad(ctx, tx, change.TabularID)
		if err != nil {
			return nil, err
		}
		if err := e.requireWritable(locked.wh); err != nil {
			return nil, err
		}
		next, err := applyCommit(locked.current, change.Requirements, change.Updates, now, metadataLogMax(locked.wh))
		if err != nil {
			return nil, err
		}
		location, err := locked.io.Write(ctx, locked.tab.Location, next)
		if err != nil {
			return nil, err
		}
		if err := e.tabulars.SetMetadataLocation(ctx, tx, locked.tab.TabularID, location); err != nil {
			return nil, err
		}
		result, err := e.buildLoadTableResult(ctx, locked.wh, locked.profile, location, next, DataAccessNone, false)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("iceberg: commit: %w", err)
	}
	for _, change := range ordered {
		e.hooks.Fire(ctx, Event{Kind: EventTableCommitted, Tabular: change.TabularID})
	}
	return results, nil
}

func uuidBytes(id ids.TabularID) []byte {
	b := [16]byte(id)
	return b[:]
}
