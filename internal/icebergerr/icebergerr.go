// Package icebergerr implements the catalog's error taxonomy. Every failure
// that can cross a component boundary is a *CatalogError: a stable Kind, an
// HTTP status, a message, and a Stack of append_detail annotations
// accumulated as the error travels up through call sites. The taxonomy is
// the only mechanism for expected-failure control flow in this service;
// requirement mismatches and not-found conditions are returned values,
// never panics.
package icebergerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable wire-level error type, e.g. "TableNotFound" or
// "RequirementFailed". Clients match on Kind, not on the message text.
type Kind string

const (
	KindInvalidLocation            Kind = "InvalidLocation"
	KindEmptyRoleName               Kind = "EmptyRoleName"
	KindNoProjectID                 Kind = "NoProjectId"
	KindInvalidPaginateToken        Kind = "InvalidPaginateToken"
	KindAuthenticationRequired      Kind = "AuthenticationRequired"
	KindWarehouseActionForbidden    Kind = "WarehouseActionForbidden"
	KindNamespaceActionForbidden    Kind = "NamespaceActionForbidden"
	KindTableActionForbidden        Kind = "TableActionForbidden"
	KindViewActionForbidden         Kind = "ViewActionForbidden"
	KindUnauthorized                Kind = "Unauthorized"
	KindWarehouseIDNotFound         Kind = "WarehouseIdNotFound"
	KindTableNotFound               Kind = "TableNotFound"
	KindViewNotFound                Kind = "ViewNotFound"
	KindNamespaceNotFound           Kind = "NamespaceNotFound"
	KindRoleIDNotFound              Kind = "RoleIdNotFound"
	KindTabularAlreadyExists        Kind = "TabularAlreadyExists"
	KindRoleNameAlreadyExists       Kind = "RoleNameAlreadyExists"
	KindTupleAlreadyExists          Kind = "TupleAlreadyExists"
	KindRequirementFailed           Kind = "RequirementFailed"
	KindInvalidUpdate               Kind = "InvalidUpdate"
	KindTableConfigFailedDep        Kind = "TableConfigFailedDependency"
	KindUnexpectedEntity            Kind = "UnexpectedEntity"
	KindSerializationError          Kind = "SerializationError"
	KindAuthorizationCountMismatch  Kind = "AuthorizationCountMismatch"
	KindAuthorizationBackendError   Kind = "AuthorizationBackendError"
	KindSecretReadFailed            Kind = "SecretReadFailed"
	KindBackendUnavailable          Kind = "BackendUnavailable"
)

var statusByKind = map[Kind]int{
	KindInvalidLocation:            http.StatusBadRequest,
	KindEmptyRoleName:              http.StatusBadRequest,
	KindNoProjectID:                http.StatusBadRequest,
	KindInvalidPaginateToken:       http.StatusBadRequest,
	KindInvalidUpdate:              http.StatusBadRequest,
	KindAuthenticationRequired:     http.StatusUnauthorized,
	KindWarehouseActionForbidden:   http.StatusForbidden,
	KindNamespaceActionForbidden:   http.StatusForbidden,
	KindTableActionForbidden:       http.StatusForbidden,
	KindViewActionForbidden:        http.StatusForbidden,
	KindUnauthorized:               http.StatusForbidden,
	KindWarehouseIDNotFound:        http.StatusNotFound,
	KindTableNotFound:              http.StatusNotFound,
	KindViewNotFound:               http.StatusNotFound,
	KindNamespaceNotFound:          http.StatusNotFound,
	KindRoleIDNotFound:             http.StatusNotFound,
	KindTabularAlreadyExists:       http.StatusConflict,
	KindRoleNameAlreadyExists:      http.StatusConflict,
	KindTupleAlreadyExists:         http.StatusConflict,
	KindRequirementFailed:          http.StatusPreconditionFailed,
	KindTableConfigFailedDep:       http.StatusFailedDependency,
	KindUnexpectedEntity:           http.StatusInternalServerError,
	KindSerializationError:         http.StatusInternalServerError,
	KindAuthorizationCountMismatch: http.StatusInternalServerError,
	KindAuthorizationBackendError:  http.StatusServiceUnavailable,
	KindSecretReadFailed:           http.StatusServiceUnavailable,
	KindBackendUnavailable:         http.StatusServiceUnavailable,
}

// CatalogError is the concrete error type returned across every component
// boundary in this service.
type CatalogError struct {
	Kind    Kind
	Message string
	Cause   error
	Stack   []string
}

// New creates a CatalogError with no cause.
func New(kind Kind, message string) *CatalogError {
	return &CatalogError{Kind: kind, Message: message}
}

// Wrap creates a CatalogError that preserves an underlying cause for
// errors.Unwrap/errors.Is chains, and for retry-safety inspection of
// backend failures.
func Wrap(kind Kind, message string, cause error) *CatalogError {
	return &CatalogError{Kind: kind, Message: message, Cause: cause}
}

func (e *CatalogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CatalogError) Unwrap() error { return e.Cause }

// HTTPStatus maps the error's Kind to its wire-level HTTP status code.
// An unregistered Kind is treated as an internal error.
func (e *CatalogError) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppendDetail records an additional layer of context as the error climbs
// back up the call stack, without discarding the top-level Kind/status.
// Deep call sites add detail; the outermost handler logs the full stack
// and emits only Kind+Message on the wire.
func (e *CatalogError) AppendDetail(detail string) *CatalogError {
	clone := *e
	clone.Stack = append(append([]string{}, e.Stack...), detail)
	return &clone
}

// Retryable reports whether the caller may safely retry the operation that
// produced this error. Requirement failures and validation errors are
// never retryable; backend-unavailable kinds are.
func (e *CatalogError) Retryable() bool {
	switch e.Kind {
	case KindBackendUnavailable, KindAuthorizationBackendError, KindSecretReadFailed:
		return true
	default:
		return false
	}
}

// Is supports errors.Is comparisons based solely on Kind, so callers can
// write errors.Is(err, icebergerr.New(icebergerr.KindTableNotFound, ""))
// without needing to match Message or Stack.
func (e *CatalogError) Is(target error) bool {
	var other *CatalogError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Of extracts the Kind of err if it is (or wraps) a *CatalogError.
func Of(err error) (Kind, bool) {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// The constructors below name every entity/action pair the wire protocol
// calls out explicitly. Handlers build on these rather than calling
// New/Wrap directly so the message format stays consistent across call
// sites.

func TableNotFound(identifier string) *CatalogError {
	return New(KindTableNotFound, fmt.Sprintf("table %q not found", identifier))
}

func ViewNotFound(identifier string) *CatalogError {
	return New(KindViewNotFound, fmt.Sprintf("view %q not found", identifier))
}

func NamespaceNotFound(identifier string) *CatalogError {
	return New(KindNamespaceNotFound, fmt.Sprintf("namespace %q not found", identifier))
}

func WarehouseIDNotFound(id fmt.Stringer) *CatalogError {
	return New(KindWarehouseIDNotFound, fmt.Sprintf("warehouse %q not found", id))
}

func RoleIDNotFound(id fmt.Stringer) *CatalogError {
	return New(KindRoleIDNotFound, fmt.Sprintf("role %q not found", id))
}

func TableAlreadyExists(identifier string) *CatalogError {
	return New(KindTabularAlreadyExists, fmt.Sprintf("table %q already exists", identifier))
}

func TabularAlreadyExists(identifier string) *CatalogError {
	return New(KindTabularAlreadyExists, fmt.Sprintf("tabular %q already exists", identifier))
}

func RoleNameAlreadyExists(name string) *CatalogError {
	return New(KindRoleNameAlreadyExists, fmt.Sprintf("role name %q already exists in this project", name))
}

func TupleAlreadyExists(detail string) *CatalogError {
	return New(KindTupleAlreadyExists, fmt.Sprintf("authorization tuple already exists: %s", detail))
}

// RequirementFailed reports an optimistic-concurrency mismatch: a commit's
// asserted requirement did not hold against the current metadata.
func RequirementFailed(requirement, detail string) *CatalogError {
	return New(KindRequirementFailed, fmt.Sprintf("requirement %q failed: %s", requirement, detail))
}

func InvalidUpdate(detail string) *CatalogError {
	return New(KindInvalidUpdate, fmt.Sprintf("invalid metadata update: %s", detail))
}

func InvalidLocation(detail string) *CatalogError {
	return New(KindInvalidLocation, detail)
}

// BackendUnavailable wraps a transport-level failure reaching a storage or
// database backend. It is retryable.
func BackendUnavailable(backend string, cause error) *CatalogError {
	return Wrap(KindBackendUnavailable, fmt.Sprintf("%s is unavailable", backend), cause)
}

func WarehouseActionForbidden(action string) *CatalogError {
	return New(KindWarehouseActionForbidden, fmt.Sprintf("action %q forbidden on warehouse", action))
}

func NamespaceActionForbidden(action string) *CatalogError {
	return New(KindNamespaceActionForbidden, fmt.Sprintf("action %q forbidden on namespace", action))
}

func TableActionForbidden(action string) *CatalogError {
	return New(KindTableActionForbidden, fmt.Sprintf("action %q forbidden on table", action))
}

func ViewActionForbidden(action string) *CatalogError {
	return New(KindViewActionForbidden, fmt.Sprintf("action %q forbidden on view", action))
}

// TableConfigFailedDependency reports that loading the storage-credential
// vending config for a table failed because an upstream dependency (STS,
// the secret store) returned an error, distinct from the table itself being
// missing or forbidden.
func TableConfigFailedDependency(cause error) *CatalogError {
	return Wrap(KindTableConfigFailedDep, "failed to resolve table storage configuration", cause)
}

func UnexpectedEntity(want, got string) *CatalogError {
	return New(KindUnexpectedEntity, fmt.Sprintf("expected entity of kind %q, found %q", want, got))
}

func SerializationError(cause error) *CatalogError {
	return Wrap(KindSerializationError, "failed to serialize metadata", cause)
}

// AuthorizationCountMismatch reports that a batch CanUse check returned a
// different number of results than entities queried, a bug in the
// authorization backend, never a caller error.
func AuthorizationCountMismatch(want, got int) *CatalogError {
	return New(KindAuthorizationCountMismatch, fmt.Sprintf("authorization backend returned %d results, expected %d", got, want))
}

func AuthorizationBackendError(cause error) *CatalogError {
	return Wrap(KindAuthorizationBackendError, "authorization backend error", cause)
}

func SecretReadFailed(cause error) *CatalogError {
	return Wrap(KindSecretReadFailed, "failed to read secret", cause)
}

func EmptyRoleName() *CatalogError {
	return New(KindEmptyRoleName, "role name must not be empty")
}

func NoProjectID() *CatalogError {
	return New(KindNoProjectID, "request did not resolve to a project id")
}

func InvalidPaginateToken(cause error) *CatalogError {
	return Wrap(KindInvalidPaginateToken, "malformed page token", cause)
}

func AuthenticationRequired() *CatalogError {
	return New(KindAuthenticationRequired, "authentication required")
}

// Unauthorized is the generic 403 used outside the per-entity *ActionForbidden
// constructors, e.g. for project- and server-scoped actions.
func Unauthorized(action string) *CatalogError {
	return New(KindUnauthorized, fmt.Sprintf("action %q unauthorized", action))
}
