// Package authz gates every public catalog operation behind one or more
// (entity, action) checks against an Authorizer. One action enum exists per
// entity kind in the hierarchy, mirroring how auth/auth.go's AuthService
// exposes one verb per concern (HasRole, HasAnyRole) rather than a single
// generic Check(subject, verb, object) call. Concrete, named actions make
// call sites self-documenting; the Decision wrapper (mustuse.go) records at
// runtime whether a check's result was inspected.
package authz

// EntityKind names the position of an entity in the catalog hierarchy:
// server > project > warehouse > namespace > tabular (table | view), plus
// the role/user entities that exist per-project.
type EntityKind string

const (
	EntityServer    EntityKind = "server"
	EntityProject   EntityKind = "project"
	EntityWarehouse EntityKind = "warehouse"
	EntityNamespace EntityKind = "namespace"
	EntityTable     EntityKind = "table"
	EntityView      EntityKind = "view"
	EntityRole      EntityKind = "role"
	EntityUser      EntityKind = "user"
)

// ServerAction enumerates actions checkable against the singleton server.
type ServerAction string

const (
	ServerCanUse              ServerAction = "can_use"
	ServerCreateProject       ServerAction = "create_project"
	ServerUpdateUsers         ServerAction = "update_users"
	ServerListAllProjects     ServerAction = "list_all_projects"
	ServerReadServerStatistics ServerAction = "read_server_statistics"
)

// ProjectAction enumerates actions checkable against a project.
type ProjectAction string

const (
	ProjectCanUse          ProjectAction = "can_use"
	ProjectCreateWarehouse ProjectAction = "create_warehouse"
	ProjectDelete          ProjectAction = "delete"
	ProjectRename          ProjectAction = "rename"
	ProjectListWarehouses  ProjectAction = "list_warehouses"
	ProjectCreateRole      ProjectAction = "create_role"
	ProjectReadAssignments ProjectAction = "read_assignments"
)

// WarehouseAction enumerates actions checkable against a warehouse.
type WarehouseAction string

const (
	WarehouseCanUse           WarehouseAction = "can_use"
	WarehouseCreateNamespace  WarehouseAction = "create_namespace"
	WarehouseDelete           WarehouseAction = "delete"
	WarehouseModifyStorage    WarehouseAction = "modify_storage"
	WarehouseModifyStorageCredential WarehouseAction = "modify_storage_credential"
	WarehouseGetConfig        WarehouseAction = "get_config"
	WarehouseRename           WarehouseAction = "rename"
	WarehouseListNamespaces   WarehouseAction = "list_namespaces"
	WarehouseDeactivate       WarehouseAction = "deactivate"
	WarehouseReadStatistics   WarehouseAction = "read_statistics"
	WarehouseManageTasks      WarehouseAction = "manage_tasks"
	// WarehouseCanListEverything grants a bulk bypass for listing the
	// warehouse's root namespaces: when allowed, a list_namespaces call
	// skips the per-namespace CanIncludeInList check entirely.
	WarehouseCanListEverything WarehouseAction = "can_list_everything"
)

// NamespaceAction enumerates actions checkable against a namespace.
type NamespaceAction string

const (
	NamespaceCanUse         NamespaceAction = "can_use"
	NamespaceCreateTable    NamespaceAction = "create_table"
	NamespaceCreateView     NamespaceAction = "create_view"
	NamespaceCreateNamespace NamespaceAction = "create_namespace"
	NamespaceDelete         NamespaceAction = "delete"
	NamespaceGetMetadata    NamespaceAction = "get_metadata"
	NamespaceListTables     NamespaceAction = "list_tables"
	NamespaceListViews      NamespaceAction = "list_views"
	NamespaceListNamespaces NamespaceAction = "list_namespaces"
	// NamespaceCanListEverything grants a bulk bypass for listing this
	// namespace's tables, views, and child namespaces: when allowed, the
	// corresponding list call skips the per-item CanIncludeInList check
	// entirely.
	NamespaceCanListEverything NamespaceAction = "can_list_everything"
	// NamespaceCanIncludeInList is the per-item check a child-namespace
	// listing falls back to once its parent's CanListEverything fails.
	NamespaceCanIncludeInList NamespaceAction = "can_include_in_list"
)

// TableAction enumerates actions checkable against a table.
type TableAction string

const (
	TableCanUse       TableAction = "can_use"
	TableDrop         TableAction = "drop"
	TableWriteData    TableAction = "write_data"
	TableReadData     TableAction = "read_data"
	TableGetMetadata  TableAction = "get_metadata"
	TableCommit       TableAction = "commit"
	TableRename       TableAction = "rename"
	TableUndrop       TableAction = "undrop"
	TableChangeOwnership TableAction = "change_ownership"
	// TableCanIncludeInList is the per-item check a table listing falls
	// back to once its namespace's CanListEverything fails.
	TableCanIncludeInList TableAction = "can_include_in_list"
)

// ViewAction enumerates actions checkable against a view.
type ViewAction string

const (
	ViewCanUse      ViewAction = "can_use"
	ViewDrop        ViewAction = "drop"
	ViewGetMetadata ViewAction = "get_metadata"
	ViewCommit      ViewAction = "commit"
	ViewRename      ViewAction = "rename"
	ViewUndrop      ViewAction = "undrop"
	// ViewCanIncludeInList is the per-item check a view listing falls back
	// to once its namespace's CanListEverything fails.
	ViewCanIncludeInList ViewAction = "can_include_in_list"
)

// RoleAction enumerates actions checkable against a role.
type RoleAction string

const (
	RoleCanUse   RoleAction = "can_use"
	RoleDelete   RoleAction = "delete"
	RoleRename   RoleAction = "rename"
	RoleGrant    RoleAction = "grant"
	RoleAssignee RoleAction = "assignee"
)
