// Package metadata models the opaque Iceberg TableMetadata document each
// commit produces: schemas, partition specs, sort orders, snapshots,
// snapshot refs, snapshot log, metadata log, properties, and the
// last_* counters. The catalog treats this as an immutable value at each
// commit: it never interprets schema or partition semantics beyond what
// the Requirement/Update state machine in apply.go needs.
package metadata

import "encoding/json"

// TableMetadata is the durable, versioned document behind a tabular's
// metadata_location. Fields use json.RawMessage for the Iceberg-specific
// substructures (schemas, partition specs, sort orders) since this service
// never inspects their internals, only an embedded Iceberg library would,
// and re-encoding them verbatim on every commit preserves byte-for-byte
// fields the catalog doesn't own.
type TableMetadata struct {
	FormatVersion    int                    `json:"format-version"`
	TableUUID        string                 `json:"table-uuid"`
	Location         string                 `json:"location"`
	LastUpdatedMs    int64                  `json:"last-updated-ms"`
	LastColumnID     int                    `json:"last-column-id"`
	LastPartitionID  int                    `json:"last-partition-id"`
	CurrentSchemaID  int                    `json:"current-schema-id"`
	Schemas          []json.RawMessage      `json:"schemas"`
	DefaultSpecID    int                    `json:"default-spec-id"`
	PartitionSpecs   []json.RawMessage      `json:"partition-specs"`
	DefaultSortOrder int                    `json:"default-sort-order-id"`
	SortOrders       []json.RawMessage      `json:"sort-orders"`
	Properties       map[string]string      `json:"properties"`
	CurrentSnapshot  int64                  `json:"current-snapshot-id"`
	Snapshots        []Snapshot             `json:"snapshots"`
	SnapshotLog      []SnapshotLogEntry     `json:"snapshot-log"`
	MetadataLog      []MetadataLogEntry     `json:"metadata-log"`
	Refs             map[string]SnapshotRef `json:"refs"`
}

// Snapshot is one entry in the snapshots array. ManifestList is a URI, not
// interpreted by this service.
type Snapshot struct {
	SnapshotID    int64  `json:"snapshot-id"`
	ParentID      *int64 `json:"parent-snapshot-id,omitempty"`
	SequenceNum   int64  `json:"sequence-number"`
	TimestampMs   int64  `json:"timestamp-ms"`
	ManifestList  string `json:"manifest-list"`
	SummaryAction string `json:"summary-operation,omitempty"`
	SchemaID      int    `json:"schema-id"`
}

type SnapshotLogEntry struct {
	TimestampMs int64 `json:"timestamp-ms"`
	SnapshotID  int64 `json:"snapshot-id"`
}

type MetadataLogEntry struct {
	TimestampMs      int64  `json:"timestamp-ms"`
	MetadataLocation string `json:"metadata-file"`
}

type SnapshotRef struct {
	SnapshotID         int64  `json:"snapshot-id"`
	Type               string `json:"type"` // "branch" or "tag"
	MaxRefAgeMs        *int64 `json:"max-ref-age-ms,omitempty"`
	MaxSnapshotAgeMs   *int64 `json:"max-snapshot-age-ms,omitempty"`
	MinSnapshotsToKeep *int   `json:"min-snapshots-to-keep,omitempty"`
}

// Clone returns a deep-enough copy for safe in-place mutation by Apply:
// every field an Update can touch is copied rather than aliased.
func (m TableMetadata) Clone() TableMetadata {
	out := m
	out.Schemas = append([]json.RawMessage(nil), m.Schemas...)
	out.PartitionSpecs = append([]json.RawMessage(nil), m.PartitionSpecs...)
	out.SortOrders = append([]json.RawMessage(nil), m.SortOrders...)
	out.Snapshots = append([]Snapshot(nil), m.Snapshots...)
	out.SnapshotLog = append([]SnapshotLogEntry(nil), m.SnapshotLog...)
	out.MetadataLog = append([]MetadataLogEntry(nil), m.MetadataLog...)
	out.Properties = make(map[string]string, len(m.Properties))
	for k, v := range m.Properties {
		out.Properties[k] = v
	}
	out.Refs = make(map[string]SnapshotRef, len(m.Refs))
	for k, v := range m.Refs {
		out.Refs[k] = v
	}
	return out
}

// SnapshotByID finds a snapshot by ID, returning ok=false if absent.
func (m TableMetadata) SnapshotByID(id int64) (Snapshot, bool) {
	for _, s := range m.Snapshots {
		if s.SnapshotID == id {
			return s, true
		}
	}
	return Snapshot{}, false
}
