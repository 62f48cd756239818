package iceberg

import (
	"encoding/json"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/iceberg/metadata"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
)

// DataAccess selects what LoadTable vends alongside metadata: none, or
// time-bounded storage credentials scoped to the tabular's location.
type DataAccess string

const (
	DataAccessNone  DataAccess = "none"
	DataAccessVended DataAccess = "vended-credentials"
)

// LoadTableResult is the REST Catalog protocol's shared response shape for
// create_table, register_table, load_table, and commit_table.
type LoadTableResult struct {
	MetadataLocation string
	Metadata         metadata.TableMetadata
	ETag             string
	Config           map[string]string // vended credential payload, flattened
}

// CreateTableRequest mirrors the wire CreateTableRequest body.
type CreateTableRequest struct {
	Namespace    ids.NamespaceID
	Name         string
	Location     string // empty to use the namespace default
	Schema       json.RawMessage
	PartitionSpec json.RawMessage
	SortOrder    json.RawMessage
	Properties   map[string]string
	StageCreate  bool
	DataAccess   DataAccess
}

// RegisterTableRequest mirrors the wire RegisterTableRequest body.
type RegisterTableRequest struct {
	Namespace        ids.NamespaceID
	Name             string
	MetadataLocation string
	Overwrite        bool
}

// LoadTableRequest identifies a tabular and the credential mode to load it
// under.
type LoadTableRequest struct {
	TabularID  ids.TabularID
	DataAccess DataAccess
	Write      bool // true vends write-scoped credentials, false read-only
}

// CommitTableRequest mirrors the wire CommitTableRequest: a
// requirements+updates pair applied against the tabular's current metadata.
type CommitTableRequest struct {
	TabularID    ids.TabularID
	Requirements []metadata.Requirement
	Updates      []metadata.Update
}

// CommitTableResponse is commit_table's response: the same shape as
// LoadTableResult, since the two are identical on the wire.
type CommitTableResponse = LoadTableResult

// TransactionTableChange is one element of commit_transaction's
// table_changes array.
type TransactionTableChange struct {
	TabularID    ids.TabularID
	Requirements []metadata.Requirement
	Updates      []metadata.Update
}

// CommitTransactionRequest is the all-or-nothing multi-table commit.
type CommitTransactionRequest struct {
	TableChanges []TransactionTableChange
}

// DropTableRequest mirrors drop_table's query parameters.
type DropTableRequest struct {
	TabularID      ids.TabularID
	PurgeRequested bool
	Force          bool
}

// RenameTableRequest mirrors rename_table's request body.
type RenameTableRequest struct {
	TabularID    ids.TabularID
	DestNamespace ids.NamespaceID
	DestName     string
}

// CreateViewRequest mirrors the wire CreateViewRequest body. Views are
// never staged (stage_create only applies to tables) and never vend
// data-access credentials: a view has no data files of its own.
type CreateViewRequest struct {
	Namespace     ids.NamespaceID
	Name          string
	Location      string
	ViewVersion   json.RawMessage
	Schema        json.RawMessage
	Properties    map[string]string
}

// LoadViewRequest identifies a view to load.
type LoadViewRequest struct {
	TabularID ids.TabularID
}

// CommitViewRequest mirrors the wire CommitViewRequest.
type CommitViewRequest struct {
	TabularID    ids.TabularID
	Requirements []metadata.Requirement
	Updates      []metadata.Update
}

// RenameViewRequest mirrors rename_table's body, for views.
type RenameViewRequest struct {
	TabularID     ids.TabularID
	DestNamespace ids.NamespaceID
	DestName      string
}

// DropViewRequest mirrors drop_table's query parameters, for views. As for
// tables, PurgeRequested controls whether a soft drop enqueues a
// tabular_expiration task and whether a hard drop enqueues a tabular_purge
// task for the view's own metadata location.
type DropViewRequest struct {
	TabularID      ids.TabularID
	PurgeRequested bool
	Force          bool
}

// ListTablesRequest mirrors list_tables' query parameters.
type ListTablesRequest struct {
	Namespace ids.NamespaceID
	PageSize  int
	PageToken *pagination.Token
}

// ListViewsRequest mirrors list_views' query parameters.
type ListViewsRequest struct {
	Namespace ids.NamespaceID
	PageSize  int
	PageToken *pagination.Token
}

// ListNamespacesRequest mirrors list_namespaces' query parameters. Parent
// is nil when listing a warehouse's root namespaces.
type ListNamespacesRequest struct {
	Warehouse ids.WarehouseID
	Parent    *ids.NamespaceID
	PageSize  int
	PageToken *pagination.Token
}

// TabularListResult is list_tables' and list_views' shared response shape:
// the page of tabulars a caller may see, already masked by authorization,
// plus the token to fetch the next page of the underlying, unfiltered set.
type TabularListResult struct {
	Tabulars      []catalogstore.Tabular
	NextPageToken *pagination.Token
}

// NamespaceListResult is list_namespaces' response shape.
type NamespaceListResult struct {
	Namespaces    []catalogstore.Namespace
	NextPageToken *pagination.Token
}

// warehouseAcceptsWrites reports whether a warehouse accepts new writes.
func warehouseAcceptsWrites(w *catalogstore.Warehouse) bool {
	return w.Status == catalogstore.WarehouseActive
}
