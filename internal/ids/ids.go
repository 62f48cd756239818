// Package ids defines the typed identifiers used across the catalog
// hierarchy (server, project, warehouse, namespace, tabular, role, task).
// Each type wraps uuid.UUID so the compiler rejects passing a WarehouseID
// where a NamespaceID is expected, while still satisfying database/sql's
// Scanner/Valuer and encoding/json's Marshaler/Unmarshaler for pgx and gorm.
package ids

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ServerID identifies the singleton server row.
type ServerID uuid.UUID

// ProjectID identifies a project, unique per server.
type ProjectID uuid.UUID

// RoleID identifies a role, unique per project.
type RoleID uuid.UUID

// WarehouseID identifies a warehouse, unique per project.
type WarehouseID uuid.UUID

// NamespaceID identifies a node in a warehouse's namespace tree.
type NamespaceID uuid.UUID

// TabularID identifies a table or view row.
type TabularID uuid.UUID

// TaskID identifies a task queue row.
type TaskID uuid.UUID

// ReportID identifies a metric report row.
type ReportID uuid.UUID

// SecretID identifies a stored secret, regardless of which backend
// (in-database or Infisical) actually holds the material.
type SecretID uuid.UUID

// New mints fresh identifiers of each kind.
func NewServerID() ServerID       { return ServerID(uuid.New()) }
func NewProjectID() ProjectID     { return ProjectID(uuid.New()) }
func NewRoleID() RoleID           { return RoleID(uuid.New()) }
func NewWarehouseID() WarehouseID { return WarehouseID(uuid.New()) }
func NewNamespaceID() NamespaceID { return NamespaceID(uuid.New()) }
func NewTabularID() TabularID     { return TabularID(uuid.New()) }
func NewTaskID() TaskID           { return TaskID(uuid.New()) }
func NewReportID() ReportID         { return ReportID(uuid.New()) }
func NewSecretID() SecretID         { return SecretID(uuid.New()) }

// the concrete methods are generated by hand below rather than via
// generics: database/sql.Scanner requires a pointer receiver per named
// type, and Go generics can't parameterize over a family of distinct
// named types with shared underlying representation without losing the
// type-safety this package exists to provide.

func (id ServerID) String() string    { return uuid.UUID(id).String() }
func (id ProjectID) String() string   { return uuid.UUID(id).String() }
func (id RoleID) String() string      { return uuid.UUID(id).String() }
func (id WarehouseID) String() string { return uuid.UUID(id).String() }
func (id NamespaceID) String() string { return uuid.UUID(id).String() }
func (id TabularID) String() string   { return uuid.UUID(id).String() }
func (id TaskID) String() string      { return uuid.UUID(id).String() }
func (id ReportID) String() string    { return uuid.UUID(id).String() }
func (id SecretID) String() string    { return uuid.UUID(id).String() }

func (id ServerID) IsZero() bool    { return id == ServerID{} }
func (id ProjectID) IsZero() bool   { return id == ProjectID{} }
func (id WarehouseID) IsZero() bool { return id == WarehouseID{} }
func (id NamespaceID) IsZero() bool { return id == NamespaceID{} }
func (id TabularID) IsZero() bool   { return id == TabularID{} }
func (id TaskID) IsZero() bool      { return id == TaskID{} }
func (id ReportID) IsZero() bool    { return id == ReportID{} }
func (id SecretID) IsZero() bool    { return id == SecretID{} }

func (id ServerID) MarshalJSON() ([]byte, error)    { return marshalQuoted(uuid.UUID(id)) }
func (id ProjectID) MarshalJSON() ([]byte, error)   { return marshalQuoted(uuid.UUID(id)) }
func (id RoleID) MarshalJSON() ([]byte, error)      { return marshalQuoted(uuid.UUID(id)) }
func (id WarehouseID) MarshalJSON() ([]byte, error) { return marshalQuoted(uuid.UUID(id)) }
func (id NamespaceID) MarshalJSON() ([]byte, error) { return marshalQuoted(uuid.UUID(id)) }
func (id TabularID) MarshalJSON() ([]byte, error)   { return marshalQuoted(uuid.UUID(id)) }
func (id TaskID) MarshalJSON() ([]byte, error)      { return marshalQuoted(uuid.UUID(id)) }
func (id ReportID) MarshalJSON() ([]byte, error)    { return marshalQuoted(uuid.UUID(id)) }
func (id SecretID) MarshalJSON() ([]byte, error)    { return marshalQuoted(uuid.UUID(id)) }

func (id *ServerID) UnmarshalJSON(b []byte) error    { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *ProjectID) UnmarshalJSON(b []byte) error   { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *RoleID) UnmarshalJSON(b []byte) error      { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *WarehouseID) UnmarshalJSON(b []byte) error { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *NamespaceID) UnmarshalJSON(b []byte) error { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *TabularID) UnmarshalJSON(b []byte) error   { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *TaskID) UnmarshalJSON(b []byte) error      { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *ReportID) UnmarshalJSON(b []byte) error    { return unmarshalInto(b, (*uuid.UUID)(id)) }
func (id *SecretID) UnmarshalJSON(b []byte) error    { return unmarshalInto(b, (*uuid.UUID)(id)) }

func (id ServerID) Value() (driver.Value, error)    { return uuid.UUID(id).String(), nil }
func (id ProjectID) Value() (driver.Value, error)   { return uuid.UUID(id).String(), nil }
func (id RoleID) Value() (driver.Value, error)      { return uuid.UUID(id).String(), nil }
func (id WarehouseID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }
func (id NamespaceID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }
func (id TabularID) Value() (driver.Value, error)   { return uuid.UUID(id).String(), nil }
func (id TaskID) Value() (driver.Value, error)      { return uuid.UUID(id).String(), nil }
func (id ReportID) Value() (driver.Value, error)    { return uuid.UUID(id).String(), nil }
func (id SecretID) Value() (driver.Value, error)    { return uuid.UUID(id).String(), nil }

func (id *ServerID) Scan(src interface{}) error    { return scanInto(src, (*uuid.UUID)(id)) }
func (id *ProjectID) Scan(src interface{}) error   { return scanInto(src, (*uuid.UUID)(id)) }
func (id *RoleID) Scan(src interface{}) error      { return scanInto(src, (*uuid.UUID)(id)) }
func (id *WarehouseID) Scan(src interface{}) error { return scanInto(src, (*uuid.UUID)(id)) }
func (id *NamespaceID) Scan(src interface{}) error { return scanInto(src, (*uuid.UUID)(id)) }
func (id *TabularID) Scan(src interface{}) error   { return scanInto(src, (*uuid.UUID)(id)) }
func (id *TaskID) Scan(src interface{}) error      { return scanInto(src, (*uuid.UUID)(id)) }
func (id *ReportID) Scan(src interface{}) error    { return scanInto(src, (*uuid.UUID)(id)) }
func (id *SecretID) Scan(src interface{}) error    { return scanInto(src, (*uuid.UUID)(id)) }

func marshalQuoted(u uuid.UUID) ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

func unmarshalInto(b []byte, u *uuid.UUID) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("ids: invalid uuid %q: %w", s, err)
	}
	*u = parsed
	return nil
}

func scanInto(src interface{}, u *uuid.UUID) error {
	switch v := src.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("ids: scan string %q: %w", v, err)
		}
		*u = parsed
		return nil
	case []byte:
		parsed, err := uuid.Parse(string(v))
		if err != nil {
			return fmt.Errorf("ids: scan bytes %q: %w", v, err)
		}
		*u = parsed
		return nil
	case [16]byte:
		*u = uuid.UUID(v)
		return nil
	case nil:
		*u = uuid.Nil
		return nil
	default:
		return fmt.Errorf("ids: unsupported scan source %T", src)
	}
}

// ParseWarehouseID parses a warehouse id from its string form, used at the
// API boundary where identifiers arrive as path segments.
func ParseWarehouseID(s string) (WarehouseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return WarehouseID{}, fmt.Errorf("ids: invalid warehouse id %q: %w", s, err)
	}
	return WarehouseID(u), nil
}

// ParseTabularID parses a tabular id from its string form.
func ParseTabularID(s string) (TabularID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TabularID{}, fmt.Errorf("ids: invalid tabular id %q: %w", s, err)
	}
	return TabularID(u), nil
}

// ParseNamespaceID parses a namespace id from its string form.
func ParseNamespaceID(s string) (NamespaceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NamespaceID{}, fmt.Errorf("ids: invalid namespace id %q: %w", s, err)
	}
	return NamespaceID(u), nil
}

// ParseReportID parses a metric report id from its string form.
func ParseReportID(s string) (ReportID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ReportID{}, fmt.Errorf("ids: invalid report id %q: %w", s, err)
	}
	return ReportID(u), nil
}

// ParseSecretID parses a secret id from its string form.
func ParseSecretID(s string) (SecretID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SecretID{}, fmt.Errorf("ids: invalid secret id %q: %w", s, err)
	}
	return SecretID(u), nil
}

// TaskIdempotencyKey derives the deterministic uuid_v5 identifier used to
// enforce at most one non-terminal task per warehouse/queue/natural-key
// triple. The warehouse id seeds the namespace so identical natural keys
// in different warehouses never collide.
func TaskIdempotencyKey(warehouse WarehouseID, queueName, naturalKey string) TaskID {
	ns := uuid.UUID(warehouse)
	return TaskID(uuid.NewSHA1(ns, []byte(queueName+"|"+naturalKey)))
}
