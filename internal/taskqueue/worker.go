package taskqueue

import (
	"context"
	"errors"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/logging"
)

var log = logging.For("taskqueue")

// Pool owns one or more Worker goroutines per registered queue, sized by
// each queue's QueueConfig.Workers, built from the Registry/Resolver pair
// assembled at startup.
type Pool struct {
	workers  []*Worker
	stopChan chan struct{}
}

// NewPool builds one Worker per (queue, slot) pair for every queue in
// registry, sized by resolver's Workers setting.
func NewPool(txr catalogstore.Transactor, tasks catalogstore.TaskRepo, taskLogs catalogstore.TaskLogRepo, registry *Registry, resolver Resolver) *Pool {
	pool := &Pool{stopChan: make(chan struct{})}
	for _, queueName := range registry.QueueNames() {
		handler, _ := registry.Lookup(queueName)
		cfg := resolver.Resolve(queueName, nil)
		for i := 0; i < cfg.Workers; i++ {
			pool.workers = append(pool.workers, &Worker{
				id:        i,
				queueName: queueName,
				handler:   handler,
				cfg:       cfg,
				txr:       txr,
				tasks:     tasks,
				taskLogs:  taskLogs,
				stopChan:  make(chan struct{}),
			})
		}
	}
	return pool
}

// Start launches every worker's processing loop in its own goroutine.
func (p *Pool) Start() {
	log.Infof("starting task queue pool with %d workers", len(p.workers))
	for _, w := range p.workers {
		go w.run()
	}
}

// Stop signals every worker to finish its current task and exit; it does
// not wait for them.
func (p *Pool) Stop() {
	log.Info("stopping task queue pool")
	close(p.stopChan)
	for _, w := range p.workers {
		close(w.stopChan)
	}
}

// Worker repeatedly picks one task from its queue, heartbeats while the
// handler runs, and records the outcome through the
// PickNewTask/Heartbeat/RecordSuccess/RecordFailure cycle.
type Worker struct {
	id        int
	queueName string
	handler   Handler
	cfg       QueueConfig
	txr       catalogstore.Transactor
	tasks     catalogstore.TaskRepo
	taskLogs  catalogstore.TaskLogRepo
	stopChan  chan struct{}
}

func (w *Worker) run() {
	log.WithField("queue", w.queueName).Infof("worker %d started", w.id)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			log.WithField("queue", w.queueName).Infof("worker %d stopped", w.id)
			return
		case <-ticker.C:
			if err := w.processNext(); err != nil {
				log.WithField("queue", w.queueName).Errorf("worker %d: %v", w.id, err)
			}
		}
	}
}

func (w *Worker) processNext() error {
	ctx := context.Background()

	task, err := w.pick(ctx)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}

	log.WithField("queue", w.queueName).Infof("worker %d picked task %s (attempt %d)", w.id, task.TaskID, task.Attempt)

	if w.handler == nil {
		return w.recordFailure(ctx, task, errors.New("no handler registered for queue"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	heartbeatDone := make(chan struct{})
	go w.heartbeatLoop(runCtx, cancel, task.TaskID, heartbeatDone)

	handleErr := w.handler.Handle(runCtx, task, &repoHeartbeater{tasks: w.tasks, txr: w.txr, taskID: task.TaskID})
	cancel()
	<-heartbeatDone

	if handleErr != nil {
		return w.recordFailure(ctx, task, handleErr)
	}
	return w.recordSuccess(ctx, task)
}

func (w *Worker) pick(ctx context.Context) (*catalogstore.Task, error) {
	tx, err := w.txr.BeginWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := w.tasks.PickNewTask(ctx, tx, w.queueName, w.cfg.MaxTimeSinceHeartbeat)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// heartbeatLoop periodically records liveness on behalf of a running
// handler, cancelling runCtx the moment TaskCheckShouldStop is observed so
// Handle can return promptly instead of running to its own completion.
func (w *Worker) heartbeatLoop(ctx context.Context, cancel context.CancelFunc, taskID ids.TaskID, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := w.heartbeat(context.Background(), taskID)
			if err != nil {
				log.WithField("queue", w.queueName).Warnf("heartbeat failed: %v", err)
				continue
			}
			if state == catalogstore.TaskCheckShouldStop {
				cancel()
				return
			}
		}
	}
}

func (w *Worker) heartbeat(ctx context.Context, taskID ids.TaskID) (catalogstore.TaskCheckState, error) {
	tx, err := w.txr.BeginWrite(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)
	state, err := w.tasks.Heartbeat(ctx, tx, taskID, 0, nil)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return state, nil
}

func (w *Worker) recordSuccess(ctx context.Context, task *catalogstore.Task) error {
	tx, err := w.txr.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := w.tasks.RecordSuccess(ctx, tx, task.TaskID); err != nil {
		return err
	}
	if w.taskLogs != nil {
		_ = w.taskLogs.Append(ctx, tx, catalogstore.TaskLog{
			TaskID: task.TaskID, Attempt: task.Attempt, QueueName: w.queueName,
			WarehouseID: task.WarehouseID, Status: catalogstore.TaskSuccess,
		})
	}
	return tx.Commit(ctx)
}

func (w *Worker) recordFailure(ctx context.Context, task *catalogstore.Task, cause error) error {
	tx, err := w.txr.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := w.tasks.RecordFailure(ctx, tx, task.TaskID, cause.Error(), w.cfg.MaxRetries); err != nil {
		return err
	}
	if w.taskLogs != nil {
		_ = w.taskLogs.Append(ctx, tx, catalogstore.TaskLog{
			TaskID: task.TaskID, Attempt: task.Attempt, QueueName: w.queueName,
			WarehouseID: task.WarehouseID, Status: catalogstore.TaskFailed, Message: cause.Error(),
		})
	}
	return tx.Commit(ctx)
}

// repoHeartbeater is the Heartbeater a Handler receives, letting it report
// progress from inside its own long-running work without reaching into
// Worker internals.
type repoHeartbeater struct {
	tasks  catalogstore.TaskRepo
	txr    catalogstore.Transactor
	taskID ids.TaskID
}

func (h *repoHeartbeater) Heartbeat(ctx context.Context, progress int, details []byte) (catalogstore.TaskCheckState, error) {
	tx, err := h.txr.BeginWrite(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)
	state, err := h.tasks.Heartbeat(ctx, tx, h.taskID, progress, details)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return state, nil
}
