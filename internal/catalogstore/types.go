// Package catalogstore defines the persisted entity hierarchy (server,
// project, warehouse, namespace tree, tabular, task) and the Transactor
// contract every mutation goes through. Concrete backends live in
// subpackages (postgres, history); this package is backend-agnostic.
package catalogstore

import (
	"encoding/json"
	"time"

	"catalog.icecat.io/internal/ids"
)

// TabularDeleteMode controls what drop_table does on a Soft-mode warehouse
// versus a Hard-mode one.
type TabularDeleteMode string

const (
	DeleteModeSoft TabularDeleteMode = "soft"
	DeleteModeHard TabularDeleteMode = "hard"
)

// WarehouseStatus gates write operations: an inactive warehouse refuses
// mutating calls.
type WarehouseStatus string

const (
	WarehouseActive   WarehouseStatus = "active"
	WarehouseInactive WarehouseStatus = "inactive"
)

// StorageProfileKind tags which concrete profile a warehouse carries;
// internal/storageprofile owns the actual profile payloads, this package
// only persists the discriminant plus its JSON-encoded body.
type StorageProfileKind string

const (
	StorageProfileS3   StorageProfileKind = "s3"
	StorageProfileGCS  StorageProfileKind = "gcs"
	StorageProfileADLS StorageProfileKind = "adls"
	StorageProfileHDFS StorageProfileKind = "hdfs"
	StorageProfileTest StorageProfileKind = "test"
)

// Server is the zero-or-one singleton row gating bootstrap.
type Server struct {
	ServerID         ids.ServerID
	OpenForBootstrap bool
	TermsAccepted    bool
}

// Project groups warehouses and roles under one server.
type Project struct {
	ProjectID ids.ProjectID
	Name      string
	CreatedAt time.Time
}

// Role is a named, externally-addressable principal grouping unique per
// project (external_id maps onto an IdP group/claim).
type Role struct {
	RoleID      ids.RoleID
	ProjectID   ids.ProjectID
	Name        string
	ExternalID  string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Warehouse owns a namespace tree and a storage profile.
type Warehouse struct {
	WarehouseID         ids.WarehouseID
	ProjectID           ids.ProjectID
	Name                string
	StorageProfileKind  StorageProfileKind
	StorageProfileJSON  json.RawMessage
	StorageSecretID     *ids.SecretID
	TabularDeleteMode   TabularDeleteMode
	Status              WarehouseStatus
	SoftDeleteTTL       time.Duration
	MetadataLogMaxEntries int
	CreatedAt           time.Time
}

// Namespace is a node in a warehouse-scoped rooted forest. NameParts holds
// the full path from root (e.g. ["a", "b", "c"]); ParentNamespaceID is nil
// at the root of each tree.
type Namespace struct {
	NamespaceID       ids.NamespaceID
	WarehouseID       ids.WarehouseID
	NameParts         []string
	ParentNamespaceID *ids.NamespaceID
	Properties        map[string]string
	Protected          bool
	CreatedAt          time.Time
}

// TabularKind distinguishes a table row from a view row; both share the
// same table (pun intended), since a table and a view are one entity
// family ("Tabular") differing only in metadata payload shape.
type TabularKind string

const (
	TabularTable TabularKind = "table"
	TabularView  TabularKind = "view"
)

// Tabular is a table or view row. MetadataLocation is nil while staged;
// DeletedAt is nil until a soft-delete fires.
type Tabular struct {
	TabularID        ids.TabularID
	NamespaceID      ids.NamespaceID
	Kind             TabularKind
	Name             string
	MetadataLocation *string
	Location         string
	Protected        bool
	DeletedAt        *time.Time
	CleanupTaskID    *ids.TaskID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TabularListFlags is the bitset controlling which rows a listing
// operation surfaces.
type TabularListFlags uint8

const (
	ListActive TabularListFlags = 1 << iota
	ListSoftDeleted
	ListStaged
)

func (f TabularListFlags) Has(flag TabularListFlags) bool { return f&flag != 0 }

// DefaultListFlags matches default UI behavior: active rows only.
const DefaultListFlags = ListActive

// TaskStatus is the task lifecycle state.
type TaskStatus string

const (
	TaskScheduled TaskStatus = "scheduled"
	TaskRunning   TaskStatus = "running"
	TaskShouldStop TaskStatus = "should_stop"
	TaskStopping  TaskStatus = "stopping"
	TaskSuccess   TaskStatus = "success"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether a task in this status can never transition
// again; only non-terminal tasks are subject to the idempotency-key
// uniqueness constraint.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskSuccess, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// TaskEntityKind tags what a task's EntityID refers to.
type TaskEntityKind string

const (
	TaskEntityTabular  TaskEntityKind = "tabular"
	TaskEntityWarehouse TaskEntityKind = "warehouse"
	TaskEntityProject  TaskEntityKind = "project"
)

// Task is one row in the durable queue.
type Task struct {
	TaskID           ids.TaskID
	QueueName        string
	WarehouseID      ids.WarehouseID
	EntityKind       TaskEntityKind
	EntityID         string
	Status           TaskStatus
	Attempt          int
	ScheduledFor     time.Time
	PickedUpAt       *time.Time
	LastHeartbeatAt  *time.Time
	Payload          json.RawMessage
	ExecutionDetails json.RawMessage
	ParentTaskID     *ids.TaskID
	IdempotencyKey   ids.TaskID
	CreatedAt        time.Time
}

// TaskLog is a completed-attempt history row, GC'd by task_log_cleanup.
type TaskLog struct {
	TaskID      ids.TaskID
	Attempt     int
	QueueName   string
	WarehouseID ids.WarehouseID
	Status      TaskStatus
	Message     string
	CreatedAt   time.Time
}

// TaskInput is what Enqueue accepts; IdempotencyKey is derived by the
// caller via ids.TaskIdempotencyKey before reaching the repo layer so
// Enqueue stays a pure upsert.
type TaskInput struct {
	QueueName      string
	WarehouseID    ids.WarehouseID
	EntityKind     TaskEntityKind
	EntityID       string
	ScheduledFor   time.Time
	Payload        json.RawMessage
	ParentTaskID   *ids.TaskID
	IdempotencyKey ids.TaskID
}

// TaskCheckState is returned by Heartbeat; workers must terminate
// cooperatively on ShouldStop.
type TaskCheckState string

const (
	TaskCheckContinue   TaskCheckState = "continue"
	TaskCheckShouldStop TaskCheckState = "should_stop"
)

// QueueConfigRow is one (warehouse, queue) override row. A missing row
// means the queue runs on its global default.
type QueueConfigRow struct {
	WarehouseID ids.WarehouseID
	QueueName   string
	Config      json.RawMessage
}

// MetricReport is one scan or commit report submitted through the metric
// report endpoint, persisted by the metrics_ingestion queue.
type MetricReport struct {
	ReportID    ids.ReportID
	WarehouseID ids.WarehouseID
	TabularID   ids.TabularID
	ReportType  string
	Report      json.RawMessage
	ReceivedAt  time.Time
}
