package queues

import (
	"context"
	"sync"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
)

type fakeTx struct{}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTransactor struct{}

func (fakeTransactor) BeginWrite(ctx context.Context) (catalogstore.Tx, error) { return fakeTx{}, nil }
func (fakeTransactor) BeginRead(ctx context.Context) (catalogstore.Tx, error)  { return fakeTx{}, nil }

type fakeTabularRepo struct {
	byID map[ids.TabularID]*catalogstore.Tabular
}

func (r *fakeTabularRepo) Create(ctx context.Context, tx catalogstore.Tx, t catalogstore.Tabular) error {
	r.byID[t.TabularID] = &t
	return nil
}
func (r *fakeTabularRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*catalogstore.Tabular, error) {
	return r.byID[id], nil
}
func (r *fakeTabularRepo) GetByName(ctx context.Context, tx catalogstore.Tx, namespace ids.NamespaceID, kind catalogstore.TabularKind, name string) (*catalogstore.Tabular, error) {
	return nil, nil
}
func (r *fakeTabularRepo) LockForCommit(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*catalogstore.Tabular, error) {
	return r.byID[id], nil
}
func (r *fakeTabularRepo) SetMetadataLocation(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, location string) error {
	return nil
}
func (r *fakeTabularRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, namespace ids.NamespaceID, name string) error {
	return nil
}
func (r *fakeTabularRepo) SoftDelete(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, cleanupTask *ids.TaskID) error {
	return nil
}
func (r *fakeTabularRepo) Undrop(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) error {
	return nil
}
func (r *fakeTabularRepo) HardDelete(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) error {
	delete(r.byID, id)
	return nil
}
func (r *fakeTabularRepo) List(ctx context.Context, tx catalogstore.Tx, namespace ids.NamespaceID, kind catalogstore.TabularKind, flags catalogstore.TabularListFlags, pageSize int, token *pagination.Token) ([]catalogstore.Tabular, *pagination.Token, error) {
	return nil, nil, nil
}

type fakeTaskRepo struct {
	mu      sync.Mutex
	enqueued []catalogstore.TaskInput
}

func (r *fakeTaskRepo) Enqueue(ctx context.Context, tx catalogstore.Tx, input catalogstore.TaskInput) (ids.TaskID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, input)
	return input.IdempotencyKey, nil
}
func (r *fakeTaskRepo) PickNewTask(ctx context.Context, tx catalogstore.Tx, queueName string, maxTimeSinceHeartbeat time.Duration) (*catalogstore.Task, error) {
	return nil, nil
}
func (r *fakeTaskRepo) Heartbeat(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, progress int, details []byte) (catalogstore.TaskCheckState, error) {
	return catalogstore.TaskCheckContinue, nil
}
func (r *fakeTaskRepo) RecordSuccess(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) error {
	return nil
}
func (r *fakeTaskRepo) RecordFailure(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, errDetails string, maxRetries int) error {
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
	return nil, nil
}

type fakeTaskLogRepo struct{}

func (fakeTaskLogRepo) Append(ctx context.Context, tx catalogstore.Tx, entry catalogstore.TaskLog) error {
	return nil
}

var deletedOlderThanCalls int

func (fakeTaskLogRepo) DeleteOlderThan(ctx context.Context, tx catalogstore.Tx, before time.Time) (int64, error) {
	deletedOlderThanCalls++
	return 3, nil
}

type fakeObjectPurger struct {
	purged []string
	err    error
}

func (p *fakeObjectPurger) Purge(ctx context.Context, location string) error {
	p.purged = append(p.purged, location)
	return p.err
}

type fakeStatisticsRepo struct {
	increments map[string]int
}

func (r *fakeStatisticsRepo) IncrementCommit(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID, tabular ids.TabularID) error {
	if r.increments == nil {
		r.increments = map[string]int{}
	}
	r.increments[warehouse.String()]++
	return nil
}
func (r *fakeStatisticsRepo) GetWarehouseStatistics(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID) (map[string]int64, error) {
	return map[string]int64{"commit_count": int64(r.increments[warehouse.String()])}, nil
}

type fakeMetricReportRepo struct {
	inserted []catalogstore.MetricReport
}

func (r *fakeMetricReportRepo) Insert(ctx context.Context, tx catalogstore.Tx, report catalogstore.MetricReport) error {
	r.inserted = append(r.inserted, report)
	return nil
}
func (r *fakeMetricReportRepo) ListForTabular(ctx context.Context, tx catalogstore.Tx, tabular ids.TabularID, limit int) ([]catalogstore.MetricReport, error) {
	return r.inserted, nil
}
