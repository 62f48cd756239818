package requestmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromEchoMintsRequestIDWhenAbsent(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	m, ctx := FromEcho(c)
	if m.RequestID == "" {
		t.Fatal("expected a minted request id")
	}
	if FromContext(ctx).RequestID != m.RequestID {
		t.Error("FromContext did not recover the same Meta stored by FromEcho")
	}
}

func TestFromEchoPreservesInboundRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	req.Header.Set(HeaderForwardedFor, "203.0.113.5")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	m, _ := FromEcho(c)
	if m.RequestID != "req-123" {
		t.Errorf("RequestID = %q, want %q", m.RequestID, "req-123")
	}
	if m.ForwardedFor != "203.0.113.5" {
		t.Errorf("ForwardedFor = %q, want %q", m.ForwardedFor, "203.0.113.5")
	}
}

func TestFromContextWithoutMetaMintsFreshID(t *testing.T) {
	m := FromContext(context.Background())
	if m.RequestID == "" {
		t.Fatal("expected a minted request id for a bare context")
	}
}

func TestPropagateSetsHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://upstream/", nil)
	Propagate(req, Meta{RequestID: "abc", ParentOperation: "op-1"})

	if got := req.Header.Get(HeaderRequestID); got != "abc" {
		t.Errorf("HeaderRequestID = %q, want %q", got, "abc")
	}
	if got := req.Header.Get(HeaderParentOperation); got != "op-1" {
		t.Errorf("HeaderParentOperation = %q, want %q", got, "op-1")
	}
}
