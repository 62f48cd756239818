package taskqueue

import (
	"context"
	"sync"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

// fakeTx mirrors internal/iceberg/fakes_test.go's fakeTx: a no-op
// transaction since the fake repos below mutate immediately.
type fakeTx struct{ done bool }

func (t *fakeTx) Commit(ctx context.Context) error   { t.done = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTransactor struct{}

func (fakeTransactor) BeginWrite(ctx context.Context) (catalogstore.Tx, error) { return &fakeTx{}, nil }
func (fakeTransactor) BeginRead(ctx context.Context) (catalogstore.Tx, error)  { return &fakeTx{}, nil }

// fakeTaskRepo is an in-memory TaskRepo supporting PickNewTask for real,
// unlike internal/iceberg's fake which never needs picking semantics.
type fakeTaskRepo struct {
	mu          sync.Mutex
	tasks       map[ids.TaskID]*catalogstore.Task
	heartbeats  int
	shouldStop  bool
	successes   []ids.TaskID
	failures    []ids.TaskID
	lastFailure string
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[ids.TaskID]*catalogstore.Task{}}
}

func (r *fakeTaskRepo) Enqueue(ctx context.Context, tx catalogstore.Tx, input catalogstore.TaskInput) (ids.TaskID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.IdempotencyKey == input.IdempotencyKey && !t.Status.IsTerminal() {
			return t.TaskID, nil
		}
	}
	id := input.IdempotencyKey
	r.tasks[id] = &catalogstore.Task{
		TaskID: id, QueueName: input.QueueName, WarehouseID: input.WarehouseID,
		EntityKind: input.EntityKind, EntityID: input.EntityID, Status: catalogstore.TaskScheduled,
		ScheduledFor: input.ScheduledFor, Payload: input.Payload, ParentTaskID: input.ParentTaskID,
		IdempotencyKey: input.IdempotencyKey,
	}
	return id, nil
}

func (r *fakeTaskRepo) PickNewTask(ctx context.Context, tx catalogstore.Tx, queueName string, maxTimeSinceHeartbeat time.Duration) (*catalogstore.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.QueueName == queueName && t.Status == catalogstore.TaskScheduled && !t.ScheduledFor.After(time.Now()) {
			t.Status = catalogstore.TaskRunning
			t.Attempt++
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) Heartbeat(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, progress int, details []byte) (catalogstore.TaskCheckState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	if r.shouldStop {
		return catalogstore.TaskCheckShouldStop, nil
	}
	return catalogstore.TaskCheckContinue, nil
}

func (r *fakeTaskRepo) RecordSuccess(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[taskID]; ok {
		t.Status = catalogstore.TaskSuccess
	}
	r.successes = append(r.successes, taskID)
	return nil
}

func (r *fakeTaskRepo) RecordFailure(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, errDetails string, maxRetries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[taskID]; ok {
		if t.Attempt > maxRetries {
			t.Status = catalogstore.TaskFailed
		} else {
			t.Status = catalogstore.TaskScheduled
		}
	}
	r.failures = append(r.failures, taskID)
	r.lastFailure = errDetails
	return nil
}

func (r *fakeTaskRepo) RequestStop(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) error {
	return nil
}

func (r *fakeTaskRepo) Cancel(ctx context.Context, tx catalogstore.Tx, queueName string, warehouse *ids.WarehouseID, entityID *string, cancelRunning bool) (int, error) {
	return 0, nil
}

func (r *fakeTaskRepo) RunAt(ctx context.Context, tx catalogstore.Tx, taskIDs []ids.TaskID, when time.Time) error {
	return nil
}

func (r *fakeTaskRepo) Get(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) (*catalogstore.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[taskID], nil
}

type fakeTaskLogRepo struct {
	mu      sync.Mutex
	entries []catalogstore.TaskLog
}

func (r *fakeTaskLogRepo) Append(ctx context.Context, tx catalogstore.Tx, entry catalogstore.TaskLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeTaskLogRepo) DeleteOlderThan(ctx context.Context, tx catalogstore.Tx, before time.Time) (int64, error) {
	return 0, nil
}

// fakeHandler lets a test control exactly how Handle behaves.
type fakeHandler struct {
	queueName string
	run       func(ctx context.Context, task *catalogstore.Task, hb Heartbeater) error
}

func (h *fakeHandler) QueueName() string { return h.queueName }

func (h *fakeHandler) Handle(ctx context.Context, task *catalogstore.Task, hb Heartbeater) error {
	return h.run(ctx, task, hb)
}
