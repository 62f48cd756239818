package iceberg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/iceberg/metadata"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
	"catalog.icecat.io/internal/storageprofile"
)

// fakeTx is a no-op transaction: the fake repos below apply mutations
// immediately rather than buffering them. Commit only sets done;
// Rollback does nothing.
type fakeTx struct{ done bool }

func (t *fakeTx) Commit(ctx context.Context) error   { t.done = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTransactor struct{}

func (fakeTransactor) BeginWrite(ctx context.Context) (catalogstore.Tx, error) { return &fakeTx{}, nil }
func (fakeTransactor) BeginRead(ctx context.Context) (catalogstore.Tx, error)  { return &fakeTx{}, nil }

type fakeWarehouseRepo struct {
	byID map[ids.WarehouseID]*catalogstore.Warehouse
}

func (r *fakeWarehouseRepo) Create(ctx context.Context, tx catalogstore.Tx, w catalogstore.Warehouse) error {
	r.byID[w.WarehouseID] = &w
	return nil
}
func (r *fakeWarehouseRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID) (*catalogstore.Warehouse, error) {
	return r.byID[id], nil
}
func (r *fakeWarehouseRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID) error {
	delete(r.byID, id)
	return nil
}
func (r *fakeWarehouseRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID, name string) error {
	r.byID[id].Name = name
	return nil
}
func (r *fakeWarehouseRepo) SetStatus(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID, status catalogstore.WarehouseStatus) error {
	r.byID[id].Status = status
	return nil
}
func (r *fakeWarehouseRepo) SetStorageProfile(ctx context.Context, tx catalogstore.Tx, id ids.WarehouseID, kind catalogstore.StorageProfileKind, profileJSON []byte, secretID *string) error {
	r.byID[id].StorageProfileKind = kind
	r.byID[id].StorageProfileJSON = profileJSON
	return nil
}
func (r *fakeWarehouseRepo) List(ctx context.Context, tx catalogstore.Tx, project ids.ProjectID, pageSize int, token *pagination.Token) ([]catalogstore.Warehouse, *pagination.Token, error) {
	return nil, nil, nil
}

type fakeNamespaceRepo struct {
	byID map[ids.NamespaceID]*catalogstore.Namespace
}

func (r *fakeNamespaceRepo) Create(ctx context.Context, tx catalogstore.Tx, n catalogstore.Namespace) error {
	r.byID[n.NamespaceID] = &n
	return nil
}
func (r *fakeNamespaceRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID) (*catalogstore.Namespace, error) {
	return r.byID[id], nil
}
func (r *fakeNamespaceRepo) GetByPath(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID, nameParts []string) (*catalogstore.Namespace, error) {
	return nil, nil
}
func (r *fakeNamespaceRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID) error {
	delete(r.byID, id)
	return nil
}
func (r *fakeNamespaceRepo) MoveSubtree(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID, newParent *ids.NamespaceID) error {
	return nil
}
func (r *fakeNamespaceRepo) UpdateProperties(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID, properties map[string]string) error {
	r.byID[id].Properties = properties
	return nil
}
func (r *fakeNamespaceRepo) ListChildren(ctx context.Context, tx catalogstore.Tx, parent *ids.NamespaceID, warehouse ids.WarehouseID, pageSize int, token *pagination.Token) ([]catalogstore.Namespace, *pagination.Token, error) {
	var matched []catalogstore.Namespace
	for _, n := range r.byID {
		if n.WarehouseID != warehouse {
			continue
		}
		switch {
		case parent == nil && n.ParentNamespaceID == nil:
		case parent != nil && n.ParentNamespaceID != nil && *n.ParentNamespaceID == *parent:
		default:
			continue
		}
		matched = append(matched, *n)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].NamespaceID.String() < matched[j].NamespaceID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if token != nil {
		cut := len(matched)
		for i, n := range matched {
			if n.CreatedAt.After(token.CreatedAt) || (n.CreatedAt.Equal(token.CreatedAt) && n.NamespaceID.String() > token.ID.String()) {
				cut = i
				break
			}
		}
		matched = matched[cut:]
	}

	pageSize = pagination.ClampPageSize(pageSize)
	var next *pagination.Token
	if len(matched) > pageSize {
		matched = matched[:pageSize]
		last := matched[len(matched)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.NamespaceID)}
	}
	return matched, next, nil
}

type fakeTabularRepo struct {
	byID      map[ids.TabularID]*catalogstore.Tabular
	lockOrder []ids.TabularID
}

func (r *fakeTabularRepo) Create(ctx context.Context, tx catalogstore.Tx, t catalogstore.Tabular) error {
	t.CreatedAt = time.Now()
	r.byID[t.TabularID] = &t
	return nil
}
func (r *fakeTabularRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*catalogstore.Tabular, error) {
	return r.byID[id], nil
}
func (r *fakeTabularRepo) GetByName(ctx context.Context, tx catalogstore.Tx, namespace ids.NamespaceID, kind catalogstore.TabularKind, name string) (*catalogstore.Tabular, error) {
	for _, t := range r.byID {
		if t.NamespaceID == namespace && t.Kind == kind && t.Name == name && t.DeletedAt == nil {
			return t, nil
		}
	}
	return nil, nil
}
func (r *fakeTabularRepo) LockForCommit(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*catalogstore.Tabular, error) {
	r.lockOrder = append(r.lockOrder, id)
	return r.byID[id], nil
}
func (r *fakeTabularRepo) SetMetadataLocation(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, location string) error {
	r.byID[id].MetadataLocation = &location
	return nil
}
func (r *fakeTabularRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, namespace ids.NamespaceID, name string) error {
	r.byID[id].NamespaceID = namespace
	r.byID[id].Name = name
	return nil
}
func (r *fakeTabularRepo) SoftDelete(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, cleanupTask *ids.TaskID) error {
	now := time.Now()
	r.byID[id].DeletedAt = &now
	r.byID[id].CleanupTaskID = cleanupTask
	return nil
}
func (r *fakeTabularRepo) Undrop(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) error {
	r.byID[id].DeletedAt = nil
	r.byID[id].CleanupTaskID = nil
	return nil
}
func (r *fakeTabularRepo) HardDelete(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) error {
	delete(r.byID, id)
	return nil
}
func (r *fakeTabularRepo) List(ctx context.Context, tx catalogstore.Tx, namespace ids.NamespaceID, kind catalogstore.TabularKind, flags catalogstore.TabularListFlags, pageSize int, token *pagination.Token) ([]catalogstore.Tabular, *pagination.Token, error) {
	var matched []catalogstore.Tabular
	for _, t := range r.byID {
		if t.NamespaceID != namespace || t.Kind != kind {
			continue
		}
		if flags.Has(catalogstore.ListActive) && t.DeletedAt != nil {
			continue
		}
		matched = append(matched, *t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].TabularID.String() < matched[j].TabularID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if token != nil {
		cut := len(matched)
		for i, t := range matched {
			if t.CreatedAt.After(token.CreatedAt) || (t.CreatedAt.Equal(token.CreatedAt) && t.TabularID.String() > token.ID.String()) {
				cut = i
				break
			}
		}
		matched = matched[cut:]
	}

	pageSize = pagination.ClampPageSize(pageSize)
	var next *pagination.Token
	if len(matched) > pageSize {
		matched = matched[:pageSize]
		last := matched[len(matched)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.TabularID)}
	}
	return matched, next, nil
}

type fakeTaskRepo struct {
	tasks map[ids.TaskID]*catalogstore.Task
}

func (r *fakeTaskRepo) Enqueue(ctx context.Context, tx catalogstore.Tx, input catalogstore.TaskInput) (ids.TaskID, error) {
	for _, t := range r.tasks {
		if t.IdempotencyKey == input.IdempotencyKey && !t.Status.IsTerminal() {
			return t.TaskID, nil
		}
	}
	id := input.IdempotencyKey
	r.tasks[id] = &catalogstore.Task{
		TaskID: id, QueueName: input.QueueName, WarehouseID: input.WarehouseID,
		EntityKind: input.EntityKind, EntityID: input.EntityID, Status: catalogstore.TaskScheduled,
		ScheduledFor: input.ScheduledFor, Payload: input.Payload, IdempotencyKey: input.IdempotencyKey,
	}
	return id, nil
}
func (r *fakeTaskRepo) PickNewTask(ctx context.Context, tx catalogstore.Tx, queueName string, maxTimeSinceHeartbeat time.Duration) (*catalogstore.Task, error) {
	return nil, nil
}
func (r *fakeTaskRepo) Heartbeat(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID, progress int, details []byte) (catalogstore.TaskCheckState, error) {
	return "", nil
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
	n := 0
	for _, t := range r.tasks {
		if t.QueueName == queueName && (entityID == nil || t.EntityID == *entityID) && !t.Status.IsTerminal() {
			t.Status = catalogstore.TaskCancelled
			n++
		}
	}
	return n, nil
}
func (r *fakeTaskRepo) RunAt(ctx context.Context, tx catalogstore.Tx, taskIDs []ids.TaskID, when time.Time) error {
	return nil
}
func (r *fakeTaskRepo) Get(ctx context.Context, tx catalogstore.Tx, taskID ids.TaskID) (*catalogstore.Task, error) {
	return r.tasks[taskID], nil
}

// fakeMetadataIO keeps metadata documents in memory keyed by location.
type fakeMetadataIO struct {
	docs map[string]metadata.TableMetadata
	seq  int
}

func (f *fakeMetadataIO) Read(ctx context.Context, location string) (metadata.TableMetadata, error) {
	return f.docs[location], nil
}
func (f *fakeMetadataIO) Write(ctx context.Context, root string, next metadata.TableMetadata) (string, error) {
	f.seq++
	loc := fmt.Sprintf("%s/metadata/v%d.metadata.json", root, f.seq)
	f.docs[loc] = next
	return loc, nil
}

// fakeAdminAuthorizer allows every action, used where tests aren't
// exercising authorization itself.
type fakeAdminAuthorizer struct{}

func (fakeAdminAuthorizer) IsAllowedWarehouseAction(ctx context.Context, meta authz.Metadata, warehouse ids.WarehouseID, action authz.WarehouseAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) IsAllowedNamespaceAction(ctx context.Context, meta authz.Metadata, namespace ids.NamespaceID, action authz.NamespaceAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) IsAllowedTableAction(ctx context.Context, meta authz.Metadata, table ids.TabularID, action authz.TableAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) IsAllowedViewAction(ctx context.Context, meta authz.Metadata, view ids.TabularID, action authz.ViewAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) IsAllowedRoleAction(ctx context.Context, meta authz.Metadata, role ids.RoleID, action authz.RoleAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) IsAllowedProjectAction(ctx context.Context, meta authz.Metadata, project ids.ProjectID, action authz.ProjectAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) IsAllowedServerAction(ctx context.Context, meta authz.Metadata, action authz.ServerAction) (authz.Decision, error) {
	return authz.NewDecision(true), nil
}
func (fakeAdminAuthorizer) AreAllowedWarehouseActions(ctx context.Context, meta authz.Metadata, checks []authz.WarehouseActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i := range checks {
		out[i] = authz.NewDecision(true)
	}
	return out, nil
}
func (fakeAdminAuthorizer) AreAllowedNamespaceActions(ctx context.Context, meta authz.Metadata, checks []authz.NamespaceActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i := range checks {
		out[i] = authz.NewDecision(true)
	}
	return out, nil
}
func (fakeAdminAuthorizer) AreAllowedTableActions(ctx context.Context, meta authz.Metadata, checks []authz.TableActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i := range checks {
		out[i] = authz.NewDecision(true)
	}
	return out, nil
}
func (fakeAdminAuthorizer) AreAllowedViewActions(ctx context.Context, meta authz.Metadata, checks []authz.ViewActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i := range checks {
		out[i] = authz.NewDecision(true)
	}
	return out, nil
}

// fakeListAuthorizer extends fakeAdminAuthorizer to exercise the
// CanListEverything bypass and the CanIncludeInList per-item fallback: it
// answers CanListEverything with the listEverything field, and denies
// CanIncludeInList for any entity whose id is in the deny set.
type fakeListAuthorizer struct {
	fakeAdminAuthorizer
	listEverything bool
	denyInclude    map[string]bool
}

func (a fakeListAuthorizer) IsAllowedNamespaceAction(ctx context.Context, meta authz.Metadata, namespace ids.NamespaceID, action authz.NamespaceAction) (authz.Decision, error) {
	if action == authz.NamespaceCanListEverything {
		return authz.NewDecision(a.listEverything), nil
	}
	if action == authz.NamespaceCanIncludeInList {
		return authz.NewDecision(!a.denyInclude[namespace.String()]), nil
	}
	return authz.NewDecision(true), nil
}
func (a fakeListAuthorizer) IsAllowedWarehouseAction(ctx context.Context, meta authz.Metadata, warehouse ids.WarehouseID, action authz.WarehouseAction) (authz.Decision, error) {
	if action == authz.WarehouseCanListEverything {
		return authz.NewDecision(a.listEverything), nil
	}
	return authz.NewDecision(true), nil
}
func (a fakeListAuthorizer) AreAllowedNamespaceActions(ctx context.Context, meta authz.Metadata, checks []authz.NamespaceActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i, c := range checks {
		out[i] = authz.NewDecision(!a.denyInclude[c.Namespace.String()])
	}
	return out, nil
}
func (a fakeListAuthorizer) IsAllowedTableAction(ctx context.Context, meta authz.Metadata, table ids.TabularID, action authz.TableAction) (authz.Decision, error) {
	if action == authz.TableCanIncludeInList {
		return authz.NewDecision(!a.denyInclude[table.String()]), nil
	}
	return authz.NewDecision(true), nil
}
func (a fakeListAuthorizer) AreAllowedTableActions(ctx context.Context, meta authz.Metadata, checks []authz.TableActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i, c := range checks {
		out[i] = authz.NewDecision(!a.denyInclude[c.Table.String()])
	}
	return out, nil
}
func (a fakeListAuthorizer) IsAllowedViewAction(ctx context.Context, meta authz.Metadata, view ids.TabularID, action authz.ViewAction) (authz.Decision, error) {
	if action == authz.ViewCanIncludeInList {
		return authz.NewDecision(!a.denyInclude[view.String()]), nil
	}
	return authz.NewDecision(true), nil
}
func (a fakeListAuthorizer) AreAllowedViewActions(ctx context.Context, meta authz.Metadata, checks []authz.ViewActionCheck) ([]authz.Decision, error) {
	out := make([]authz.Decision, len(checks))
	for i, c := range checks {
		out[i] = authz.NewDecision(!a.denyInclude[c.View.String()])
	}
	return out, nil
}

func newTestEngine(wh *catalogstore.Warehouse, ns *catalogstore.Namespace) (*CommitEngine, *fakeTabularRepo, *fakeTaskRepo) {
	warehouses := &fakeWarehouseRepo{byID: map[ids.WarehouseID]*catalogstore.Warehouse{wh.WarehouseID: wh}}
	namespaces := &fakeNamespaceRepo{byID: map[ids.NamespaceID]*catalogstore.Namespace{ns.NamespaceID: ns}}
	tabulars := &fakeTabularRepo{byID: map[ids.TabularID]*catalogstore.Tabular{}}
	tasks := &fakeTaskRepo{tasks: map[ids.TaskID]*catalogstore.Task{}}
	io := &fakeMetadataIO{docs: map[string]metadata.TableMetadata{}}

	engine := New(Config{
		Transactor: fakeTransactor{},
		Warehouses: warehouses,
		Namespaces: namespaces,
		Tabulars:   tabulars,
		Tasks:      tasks,
		MetadataIO: map[storageprofile.Kind]MetadataIO{storageprofile.KindTest: io},
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
	})
	return engine, tabulars, tasks
}

func testWarehouseAndNamespace(deleteMode catalogstore.TabularDeleteMode) (*catalogstore.Warehouse, *catalogstore.Namespace) {
	whID := ids.NewWarehouseID()
	nsID := ids.NewNamespaceID()
	profileJSON := []byte(`{"root_dir":"file:///tmp/wh"}`)
	wh := &catalogstore.Warehouse{
		WarehouseID:           whID,
		StorageProfileKind:    catalogstore.StorageProfileTest,
		StorageProfileJSON:    profileJSON,
		TabularDeleteMode:     deleteMode,
		Status:                catalogstore.WarehouseActive,
		SoftDeleteTTL:         24 * time.Hour,
		MetadataLogMaxEntries: 10,
	}
	ns := &catalogstore.Namespace{
		NamespaceID: nsID,
		WarehouseID: whID,
		NameParts:   []string{"sales"},
		Properties:  map[string]string{},
	}
	return wh, ns
}
