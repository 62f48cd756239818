// Package echoutil holds the internal echo.Echo plumbing this service
// needs: request-id propagation and rate limiting. It deliberately stops
// short of routing; the Iceberg REST Catalog and Management API route
// trees are a separate router's job to mount against the services this
// process constructs.
package echoutil

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"catalog.icecat.io/internal/requestmeta"
)

// Config holds the subset of server tuning this process owns directly:
// body limits, CORS origins, and an optional rate limit. Read and write
// timeouts are set on the *http.Server cmd/catalogd builds around the
// Echo instance, not here.
type Config struct {
	BodyLimit      string
	AllowedOrigins []string
	RateLimit      float64
}

// New builds an *echo.Echo wired with the request-id middleware every
// handler this service registers (health, metrics, and whatever router
// an operator mounts) can rely on, plus a standard
// logger/recover/CORS/body-limit stack.
func New(cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human}) req_id=${id}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(RequestID())

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
		}))
	}

	return e
}

// RequestID mints or forwards request metadata via internal/requestmeta
// instead of echo's own request-id middleware, so the X-Request-Id this
// process assigns is the same identifier threaded into hook payloads and
// audit log rows, not a second, unrelated one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			meta, ctx := requestmeta.FromEcho(c)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(requestmeta.HeaderRequestID, meta.RequestID)
			return next(c)
		}
	}
}

// DefaultRequestTimeout equals the 30s default internal/config sets for
// server.request_timeout. cmd/catalogd takes the *http.Server read and
// write timeouts from internal/config.ServerConfig.RequestTimeout, not
// from this constant.
const DefaultRequestTimeout = 30 * time.Second
