// Package requestmeta carries per-request correlation identifiers across
// service boundaries: an inbound X-Request-Id (or a freshly minted one),
// the operation id of the current handler, and the X-Forwarded-* trio so
// audit log rows and hook payloads can be traced back to the originating
// client even behind a proxy.
package requestmeta

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderRequestID       = "X-Request-Id"
	HeaderParentOperation = "X-Parent-Operation-Id"
	HeaderForwardedFor    = "X-Forwarded-For"
	HeaderForwardedProto  = "X-Forwarded-Proto"
	HeaderForwardedHost   = "X-Forwarded-Host"
)

// Meta is the set of request-scoped identifiers threaded through a single
// inbound request.
type Meta struct {
	RequestID       string
	ParentOperation string
	ForwardedFor    string
	ForwardedProto  string
	ForwardedHost   string
}

type ctxKey struct{}

// FromEcho reads or mints request metadata from an inbound echo.Context and
// returns a context.Context carrying it, for handlers that call into
// internal packages taking a plain context.Context.
func FromEcho(c echo.Context) (Meta, context.Context) {
	req := c.Request()

	m := Meta{
		RequestID:       req.Header.Get(HeaderRequestID),
		ParentOperation: req.Header.Get(HeaderParentOperation),
		ForwardedFor:    req.Header.Get(HeaderForwardedFor),
		ForwardedProto:  req.Header.Get(HeaderForwardedProto),
		ForwardedHost:   req.Header.Get(HeaderForwardedHost),
	}
	if m.RequestID == "" {
		m.RequestID = uuid.NewString()
	}

	return m, context.WithValue(req.Context(), ctxKey{}, m)
}

// FromContext recovers the Meta stored by FromEcho, or a zero-value Meta
// with a freshly minted RequestID if none was attached (background jobs,
// task-queue workers).
func FromContext(ctx context.Context) Meta {
	if m, ok := ctx.Value(ctxKey{}).(Meta); ok {
		return m
	}
	return Meta{RequestID: uuid.NewString()}
}

// Propagate sets the correlation headers on an outbound request, e.g. when
// the catalog calls out to an STS endpoint or a webhook receiver.
func Propagate(req *http.Request, m Meta) {
	if m.RequestID != "" {
		req.Header.Set(HeaderRequestID, m.RequestID)
	}
	if m.ParentOperation != "" {
		req.Header.Set(HeaderParentOperation, m.ParentOperation)
	}
}
