package storageprofile

import (
	"context"
	"encoding/json"
	"time"
)

// VendRequest describes what the caller needs scoped credentials for: read
// or write access to one location beneath a warehouse's base location.
type VendRequest struct {
	Location string
	Write    bool
	// SessionTag identifies the requesting principal for audit trails on
	// backends that support it (AWS STS session tags, Azure SAS identifiers).
	SessionTag string
}

// Credential is the opaque, backend-specific payload returned to the
// client as part of a table/view's "config" map in the REST response.
// ExpiresAt lets callers (and internal/cache) decide when to re-vend
// rather than serve a stale grant.
type Credential struct {
	Payload   json.RawMessage
	ExpiresAt time.Time
}

// Vendor mints scoped, time-bounded credentials for one storage profile
// kind. Each of s3, adls, gcs, hdfs implements this against its own SDK.
type Vendor interface {
	Vend(ctx context.Context, profile Profile, req VendRequest) (Credential, error)
}
