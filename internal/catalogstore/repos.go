package catalogstore

import (
	"context"
	"encoding/json"
	"time"

	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
)

// ServerRepo persists the zero-or-one server row.
type ServerRepo interface {
	Get(ctx context.Context, tx Tx) (*Server, error)
	Bootstrap(ctx context.Context, tx Tx, s Server) error
}

// ProjectRepo persists projects, unique by name per server.
type ProjectRepo interface {
	Create(ctx context.Context, tx Tx, p Project) error
	Get(ctx context.Context, tx Tx, id ids.ProjectID) (*Project, error)
	Delete(ctx context.Context, tx Tx, id ids.ProjectID) error
	Rename(ctx context.Context, tx Tx, id ids.ProjectID, name string) error
	List(ctx context.Context, tx Tx, pageSize int, token *pagination.Token) ([]Project, *pagination.Token, error)
}

// RoleRepo persists roles, unique by (project_id, name) and by
// (project_id, external_id).
type RoleRepo interface {
	Create(ctx context.Context, tx Tx, r Role) error
	Get(ctx context.Context, tx Tx, id ids.RoleID) (*Role, error)
	Delete(ctx context.Context, tx Tx, id ids.RoleID) error
	Rename(ctx context.Context, tx Tx, id ids.RoleID, name string) error
	List(ctx context.Context, tx Tx, project ids.ProjectID, pageSize int, token *pagination.Token) ([]Role, *pagination.Token, error)
}

// WarehouseRepo persists warehouses, unique by (project_id, name).
type WarehouseRepo interface {
	Create(ctx context.Context, tx Tx, w Warehouse) error
	Get(ctx context.Context, tx Tx, id ids.WarehouseID) (*Warehouse, error)
	Delete(ctx context.Context, tx Tx, id ids.WarehouseID) error
	Rename(ctx context.Context, tx Tx, id ids.WarehouseID, name string) error
	SetStatus(ctx context.Context, tx Tx, id ids.WarehouseID, status WarehouseStatus) error
	SetStorageProfile(ctx context.Context, tx Tx, id ids.WarehouseID, kind StorageProfileKind, profileJSON []byte, secretID *string) error
	List(ctx context.Context, tx Tx, project ids.ProjectID, pageSize int, token *pagination.Token) ([]Warehouse, *pagination.Token, error)
}

// NamespaceRepo persists the per-warehouse namespace forest. Invariant I2
// (rename preserves namespace_id; descendants recompute atomically) is the
// implementation's responsibility, not the interface's.
type NamespaceRepo interface {
	Create(ctx context.Context, tx Tx, n Namespace) error
	Get(ctx context.Context, tx Tx, id ids.NamespaceID) (*Namespace, error)
	GetByPath(ctx context.Context, tx Tx, warehouse ids.WarehouseID, nameParts []string) (*Namespace, error)
	Delete(ctx context.Context, tx Tx, id ids.NamespaceID) error
	// MoveSubtree reparents id (and recomputes every descendant's NameParts)
	// under newParent, or to warehouse root when newParent is nil.
	MoveSubtree(ctx context.Context, tx Tx, id ids.NamespaceID, newParent *ids.NamespaceID) error
	UpdateProperties(ctx context.Context, tx Tx, id ids.NamespaceID, properties map[string]string) error
	ListChildren(ctx context.Context, tx Tx, parent *ids.NamespaceID, warehouse ids.WarehouseID, pageSize int, token *pagination.Token) ([]Namespace, *pagination.Token, error)
}

// TabularRepo persists tables and views. ListFlags controls soft-delete
// and staged visibility.
type TabularRepo interface {
	Create(ctx context.Context, tx Tx, t Tabular) error
	Get(ctx context.Context, tx Tx, id ids.TabularID) (*Tabular, error)
	GetByName(ctx context.Context, tx Tx, namespace ids.NamespaceID, kind TabularKind, name string) (*Tabular, error)
	// LockForCommit fetches a tabular row with a row-level write lock held
	// for the duration of tx (SELECT ... FOR UPDATE in the postgres backend).
	LockForCommit(ctx context.Context, tx Tx, id ids.TabularID) (*Tabular, error)
	SetMetadataLocation(ctx context.Context, tx Tx, id ids.TabularID, location string) error
	Rename(ctx context.Context, tx Tx, id ids.TabularID, namespace ids.NamespaceID, name string) error
	SoftDelete(ctx context.Context, tx Tx, id ids.TabularID, cleanupTask *ids.TaskID) error
	Undrop(ctx context.Context, tx Tx, id ids.TabularID) error
	HardDelete(ctx context.Context, tx Tx, id ids.TabularID) error
	List(ctx context.Context, tx Tx, namespace ids.NamespaceID, kind TabularKind, flags TabularListFlags, pageSize int, token *pagination.Token) ([]Tabular, *pagination.Token, error)
}

// TaskRepo implements the durable queue's storage half: Enqueue is an
// idempotent upsert keyed by IdempotencyKey; PickNewTask atomically
// claims one eligible row including zombie recovery.
type TaskRepo interface {
	Enqueue(ctx context.Context, tx Tx, input TaskInput) (ids.TaskID, error)
	PickNewTask(ctx context.Context, tx Tx, queueName string, maxTimeSinceHeartbeat time.Duration) (*Task, error)
	Heartbeat(ctx context.Context, tx Tx, taskID ids.TaskID, progress int, details []byte) (TaskCheckState, error)
	RecordSuccess(ctx context.Context, tx Tx, taskID ids.TaskID) error
	RecordFailure(ctx context.Context, tx Tx, taskID ids.TaskID, errDetails string, maxRetries int) error
	RequestStop(ctx context.Context, tx Tx, taskID ids.TaskID) error
	Cancel(ctx context.Context, tx Tx, queueName string, warehouse *ids.WarehouseID, entityID *string, cancelRunning bool) (int, error)
	RunAt(ctx context.Context, tx Tx, taskIDs []ids.TaskID, when time.Time) error
	Get(ctx context.Context, tx Tx, taskID ids.TaskID) (*Task, error)
}

// TaskLogRepo appends and GCs the task_log table.
type TaskLogRepo interface {
	Append(ctx context.Context, tx Tx, entry TaskLog) error
	DeleteOlderThan(ctx context.Context, tx Tx, before time.Time) (int64, error)
}

// StatisticsRepo aggregates per-warehouse usage counters fed by the
// statistics queue and the endpoint-statistics tracker.
type StatisticsRepo interface {
	IncrementCommit(ctx context.Context, tx Tx, warehouse ids.WarehouseID, tabular ids.TabularID) error
	GetWarehouseStatistics(ctx context.Context, tx Tx, warehouse ids.WarehouseID) (map[string]int64, error)
}

// QueueConfigRepo persists per-warehouse overrides of a queue's
// QueueConfig; a missing row means the queue falls back to its global
// default.
type QueueConfigRepo interface {
	Upsert(ctx context.Context, tx Tx, warehouse ids.WarehouseID, queueName string, config json.RawMessage) error
	Get(ctx context.Context, tx Tx, warehouse ids.WarehouseID, queueName string) (*QueueConfigRow, error)
	ListForWarehouse(ctx context.Context, tx Tx, warehouse ids.WarehouseID) ([]QueueConfigRow, error)
}

// MetricReportRepo persists scan/commit reports submitted through the
// metric report endpoint, one row per report.
type MetricReportRepo interface {
	Insert(ctx context.Context, tx Tx, report MetricReport) error
	ListForTabular(ctx context.Context, tx Tx, tabular ids.TabularID, limit int) ([]MetricReport, error)
}

// EndpointStatisticsRepo persists the flushed counters from the
// endpoint-statistics tracker: one row per (project, endpoint, warehouse,
// status_code) tuple, incremented on every flush rather than inserted
// fresh each time.
type EndpointStatisticsRepo interface {
	IncrementMany(ctx context.Context, tx Tx, counts []EndpointStatisticIncrement) error
}

// EndpointStatisticIncrement is one flushed counter delta.
type EndpointStatisticIncrement struct {
	ProjectID   string
	EndpointID  string
	WarehouseID string
	StatusCode  int
	Count       int64
}

// SecretRepo persists the ciphertext half of the in-database secret
// backend. The repo never sees plaintext: encryption and the pepper live
// in internal/secretstore/postgres, one layer up.
type SecretRepo interface {
	Create(ctx context.Context, tx Tx, secret SecretRow) error
	GetByID(ctx context.Context, tx Tx, id ids.SecretID) (*SecretRow, error)
	Delete(ctx context.Context, tx Tx, id ids.SecretID) error
}

// SecretRow is one stored secret: Ciphertext is the AES-GCM sealed box
// (nonce prefix + ciphertext + tag), never plaintext.
type SecretRow struct {
	SecretID   ids.SecretID
	Ciphertext []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
