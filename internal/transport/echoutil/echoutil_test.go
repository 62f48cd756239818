package echoutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"catalog.icecat.io/internal/requestmeta"
)

func TestRequestIDMiddlewareSetsResponseHeaderAndContext(t *testing.T) {
	e := echo.New()
	var gotFromContext string
	handler := RequestID()(func(c echo.Context) error {
		gotFromContext = requestmeta.FromContext(c.Request().Context()).RequestID
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Header().Get(requestmeta.HeaderRequestID) == "" {
		t.Fatal("expected a minted X-Request-Id response header")
	}
	if gotFromContext == "" {
		t.Fatal("expected the request id to reach the handler's context")
	}
	if rec.Header().Get(requestmeta.HeaderRequestID) != gotFromContext {
		t.Errorf("response header id %q != context id %q", rec.Header().Get(requestmeta.HeaderRequestID), gotFromContext)
	}
}

func TestRequestIDMiddlewarePreservesInboundID(t *testing.T) {
	e := echo.New()
	handler := RequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(requestmeta.HeaderRequestID, "req-fixed")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if got := rec.Header().Get(requestmeta.HeaderRequestID); got != "req-fixed" {
		t.Errorf("X-Request-Id = %q, want %q", got, "req-fixed")
	}
}

func TestNewAppliesOptionalMiddlewareOnlyWhenConfigured(t *testing.T) {
	post := func(e *echo.Echo, bodySize int) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/probe", strings.NewReader(strings.Repeat("x", bodySize)))
		req.Header.Set(echo.HeaderOrigin, "https://example.com")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	bare := New(Config{})
	if bare == nil {
		t.Fatal("expected a non-nil Echo instance with a bare config")
	}
	bare.POST("/probe", ok)
	if rec := post(bare, 2048); rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatalf("bare config: status %d, allow-origin %q; want 200 and no CORS header", rec.Code, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	}

	e := New(Config{BodyLimit: "1K", AllowedOrigins: []string{"https://example.com"}, RateLimit: 5})
	if e == nil {
		t.Fatal("expected a non-nil Echo instance with body limit, CORS, and rate limit configured")
	}
	e.POST("/probe", ok)
	if rec := post(e, 2048); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("configured body limit: status %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if rec := post(e, 16); rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "https://example.com" {
		t.Fatalf("configured CORS: allow-origin %q, want %q", rec.Header().Get(echo.HeaderAccessControlAllowOrigin), "https://example.com")
	}
}
