package metadata

import (
	"encoding/json"
	"fmt"

	"catalog.icecat.io/internal/icebergerr"
)

// Requirement is a closed set of preconditions a commit_table request can
// assert about a table's current metadata before any Update is applied.
// Evaluation is total and ordered: the first failing requirement
// determines the error (spec-mandated fail-fast semantics).
type Requirement interface {
	// Check returns nil if the requirement holds against current, or a
	// RequirementFailed error naming the requirement otherwise.
	Check(current *TableMetadata) error
	Name() string
}

// AssertCreate requires the table does not yet exist (current == nil).
type AssertCreate struct{}

func (AssertCreate) Name() string { return "assert-create" }
func (AssertCreate) Check(current *TableMetadata) error {
	if current != nil {
		return icebergerr.RequirementFailed("assert-create", "table already exists")
	}
	return nil
}

// AssertTableUUID requires current.TableUUID == UUID.
type AssertTableUUID struct{ UUID string }

func (r AssertTableUUID) Name() string { return "assert-table-uuid" }
func (r AssertTableUUID) Check(current *TableMetadata) error {
	if current == nil {
		return icebergerr.RequirementFailed(r.Name(), "table does not exist")
	}
	if current.TableUUID != r.UUID {
		return icebergerr.RequirementFailed(r.Name(), fmt.Sprintf("uuid mismatch: have %s, want %s", current.TableUUID, r.UUID))
	}
	return nil
}

// AssertCurrentSchemaID requires current.CurrentSchemaID == SchemaID.
type AssertCurrentSchemaID struct{ SchemaID int }

func (r AssertCurrentSchemaID) Name() string { return "assert-current-schema-id" }
func (r AssertCurrentSchemaID) Check(current *TableMetadata) error {
	if current == nil {
		return icebergerr.RequirementFailed(r.Name(), "table does not exist")
	}
	if current.CurrentSchemaID != r.SchemaID {
		return icebergerr.RequirementFailed(r.Name(), fmt.Sprintf("schema id mismatch: have %d, want %d", current.CurrentSchemaID, r.SchemaID))
	}
	return nil
}

// AssertRefSnapshotID requires the named ref points at SnapshotID (or is
// absent, when SnapshotID is nil).
type AssertRefSnapshotID struct {
	Ref        string
	SnapshotID *int64
}

func (r AssertRefSnapshotID) Name() string { return "assert-ref-snapshot-id:" + r.Ref }
func (r AssertRefSnapshotID) Check(current *TableMetadata) error {
	if current == nil {
		return icebergerr.RequirementFailed(r.Name(), "table does not exist")
	}
	existing, ok := current.Refs[r.Ref]
	if !ok {
		if r.SnapshotID != nil {
			return icebergerr.RequirementFailed(r.Name(), fmt.Sprintf("ref %q does not exist", r.Ref))
		}
		return nil
	}
	if r.SnapshotID == nil || existing.SnapshotID != *r.SnapshotID {
		return icebergerr.RequirementFailed(r.Name(), fmt.Sprintf("ref %q snapshot mismatch", r.Ref))
	}
	return nil
}

// AssertLastAssignedFieldID requires current.LastColumnID == FieldID.
type AssertLastAssignedFieldID struct{ FieldID int }

func (r AssertLastAssignedFieldID) Name() string { return "assert-last-assigned-field-id" }
func (r AssertLastAssignedFieldID) Check(current *TableMetadata) error {
	if current == nil {
		return icebergerr.RequirementFailed(r.Name(), "table does not exist")
	}
	if current.LastColumnID != r.FieldID {
		return icebergerr.RequirementFailed(r.Name(), fmt.Sprintf("last-column-id mismatch: have %d, want %d", current.LastColumnID, r.FieldID))
	}
	return nil
}

// Update is a closed set of mutations a commit can apply, in request
// order, to produce the next TableMetadata.
type Update interface {
	Apply(next *TableMetadata, nowMs int64) error
	Name() string
}

// AddSchema appends a schema and optionally makes it current.
type AddSchema struct {
	Schema        json.RawMessage
	SchemaID      int
	SetAsCurrent  bool
	LastColumnID  int
}

func (AddSchema) Name() string { return "add-schema" }
func (u AddSchema) Apply(next *TableMetadata, nowMs int64) error {
	next.Schemas = append(next.Schemas, u.Schema)
	if u.LastColumnID > next.LastColumnID {
		next.LastColumnID = u.LastColumnID
	}
	if u.SetAsCurrent {
		next.CurrentSchemaID = u.SchemaID
	}
	return nil
}

// SetCurrentSchema switches the active schema to an already-added ID.
type SetCurrentSchema struct{ SchemaID int }

func (SetCurrentSchema) Name() string { return "set-current-schema" }
func (u SetCurrentSchema) Apply(next *TableMetadata, nowMs int64) error {
	next.CurrentSchemaID = u.SchemaID
	return nil
}

// AddPartitionSpec appends a partition spec and optionally makes it default.
type AddPartitionSpec struct {
	Spec         json.RawMessage
	SpecID       int
	SetAsDefault bool
}

func (AddPartitionSpec) Name() string { return "add-spec" }
func (u AddPartitionSpec) Apply(next *TableMetadata, nowMs int64) error {
	next.PartitionSpecs = append(next.PartitionSpecs, u.Spec)
	if u.SetAsDefault {
		next.DefaultSpecID = u.SpecID
	}
	return nil
}

// AddSnapshot appends a new snapshot, rejecting a duplicate snapshot ID
// (already present is an InvalidUpdate, not silently accepted). It does not
// touch the snapshot log; SetSnapshotRef on "main" appends to it.
type AddSnapshot struct{ Snapshot Snapshot }

func (AddSnapshot) Name() string { return "add-snapshot" }
func (u AddSnapshot) Apply(next *TableMetadata, nowMs int64) error {
	if _, ok := next.SnapshotByID(u.Snapshot.SnapshotID); ok {
		return icebergerr.InvalidUpdate(fmt.Sprintf("snapshot %d already exists", u.Snapshot.SnapshotID))
	}
	next.Snapshots = append(next.Snapshots, u.Snapshot)
	return nil
}

// SetSnapshotRef points a branch or tag at a snapshot, appending to the
// snapshot log when the ref is the table's "main" branch.
type SetSnapshotRef struct {
	Ref  string
	Spec SnapshotRef
}

func (SetSnapshotRef) Name() string { return "set-snapshot-ref" }
func (u SetSnapshotRef) Apply(next *TableMetadata, nowMs int64) error {
	if _, ok := next.SnapshotByID(u.Spec.SnapshotID); !ok {
		return icebergerr.InvalidUpdate(fmt.Sprintf("set-snapshot-ref: snapshot %d not found", u.Spec.SnapshotID))
	}
	if next.Refs == nil {
		next.Refs = map[string]SnapshotRef{}
	}
	next.Refs[u.Ref] = u.Spec
	if u.Ref == "main" {
		next.CurrentSnapshot = u.Spec.SnapshotID
		next.SnapshotLog = append(next.SnapshotLog, SnapshotLogEntry{TimestampMs: nowMs, SnapshotID: u.Spec.SnapshotID})
	}
	return nil
}

// RemoveSnapshotRef drops a ref. Clearing "main" sets current-snapshot-id
// to -1.
type RemoveSnapshotRef struct{ Ref string }

func (RemoveSnapshotRef) Name() string { return "remove-snapshot-ref" }
func (u RemoveSnapshotRef) Apply(next *TableMetadata, nowMs int64) error {
	delete(next.Refs, u.Ref)
	if u.Ref == "main" {
		next.CurrentSnapshot = -1
	}
	return nil
}

// SetProperties merges key/value pairs into the metadata's properties map.
type SetProperties struct{ Properties map[string]string }

func (SetProperties) Name() string { return "set-properties" }
func (u SetProperties) Apply(next *TableMetadata, nowMs int64) error {
	if next.Properties == nil {
		next.Properties = map[string]string{}
	}
	for k, v := range u.Properties {
		next.Properties[k] = v
	}
	return nil
}

// RemoveProperties deletes keys from the properties map.
type RemoveProperties struct{ Keys []string }

func (RemoveProperties) Name() string { return "remove-properties" }
func (u RemoveProperties) Apply(next *TableMetadata, nowMs int64) error {
	for _, k := range u.Keys {
		delete(next.Properties, k)
	}
	return nil
}

// SetLocation changes the table's root location.
type SetLocation struct{ Location string }

func (SetLocation) Name() string { return "set-location" }
func (u SetLocation) Apply(next *TableMetadata, nowMs int64) error {
	next.Location = u.Location
	return nil
}

// Apply runs every requirement against current (nil for a not-yet-existing
// table), fail-fast on the first failure, then applies every update in
// order to a clone of current, bumping last-updated-ms strictly and
// trimming metadata_log to maxLogEntries (0 disables trimming). Returns
// the resulting metadata without persisting it. Persistence is the
// caller's (internal/iceberg.CommitEngine's) job under a row lock.
func Apply(current *TableMetadata, requirements []Requirement, updates []Update, nowMs int64, maxLogEntries int) (TableMetadata, error) {
	for _, r := range requirements {
		if err := r.Check(current); err != nil {
			return TableMetadata{}, err
		}
	}

	var next TableMetadata
	if current != nil {
		next = current.Clone()
	}

	for _, u := range updates {
		if err := u.Apply(&next, nowMs); err != nil {
			return TableMetadata{}, err
		}
	}

	// last-updated-ms must strictly increase; ties (or a clock that hasn't
	// advanced since the last commit) are resolved by bumping by one.
	if current != nil && nowMs <= current.LastUpdatedMs {
		next.LastUpdatedMs = current.LastUpdatedMs + 1
	} else {
		next.LastUpdatedMs = nowMs
	}

	if next.CurrentSnapshot != -1 {
		if _, ok := next.SnapshotByID(next.CurrentSnapshot); !ok && next.CurrentSnapshot != 0 {
			return TableMetadata{}, icebergerr.InvalidUpdate(fmt.Sprintf("current-snapshot-id %d does not reference a known snapshot", next.CurrentSnapshot))
		}
	}

	if maxLogEntries > 0 && len(next.MetadataLog) > maxLogEntries {
		next.MetadataLog = next.MetadataLog[len(next.MetadataLog)-maxLogEntries:]
	}

	return next, nil
}
