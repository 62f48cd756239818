// Package pagination implements the opaque page tokens returned by every
// list operation in the catalog. Tokens are monotonic over (created_at, id)
// so that concatenating all pages yields every visible row exactly once,
// even when the underlying rows are filtered post-authorization.
package pagination

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tokenVersion is the only wire version this service emits or accepts.
const tokenVersion = "1"

const (
	// MinPageSize is the smallest page size a caller may request.
	MinPageSize = 1
	// MaxPageSize is the largest page size a caller may request; larger
	// requests are clamped rather than rejected.
	MaxPageSize = 1000
	// DefaultPageSize is used when a caller omits the page size.
	DefaultPageSize = 100
)

// Token is the decoded form of a page token: the (created_at, id) cursor
// of the last row returned on the previous page.
type Token struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode serializes a Token into its wire form, "1&<created_at_micros>&<id>".
func Encode(t Token) string {
	return fmt.Sprintf("%s&%d&%s", tokenVersion, t.CreatedAt.UnixMicro(), t.ID.String())
}

// Decode parses a wire-form page token. Any malformed input is reported
// as ErrMalformed and must never panic.
func Decode(s string) (Token, error) {
	if s == "" {
		return Token{}, nil
	}

	parts := strings.Split(s, "&")
	if len(parts) != 3 {
		return Token{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformed, len(parts))
	}
	if parts[0] != tokenVersion {
		return Token{}, fmt.Errorf("%w: unsupported version %q", ErrMalformed, parts[0])
	}

	micros, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: invalid timestamp: %v", ErrMalformed, err)
	}

	id, err := uuid.Parse(parts[2])
	if err != nil {
		return Token{}, fmt.Errorf("%w: invalid id: %v", ErrMalformed, err)
	}

	return Token{
		CreatedAt: time.UnixMicro(micros).UTC(),
		ID:        id,
	}, nil
}

// ErrMalformed is returned by Decode for any token that does not parse.
// Callers translate it to the wire-level 400 icebergerr.InvalidPaginateToken.
var ErrMalformed = fmt.Errorf("pagination: malformed page token")

// ClampPageSize enforces the [MinPageSize, MaxPageSize] boundary. A
// requested size of zero is treated as "unspecified" and resolves to
// DefaultPageSize.
func ClampPageSize(requested int) int {
	if requested == 0 {
		return DefaultPageSize
	}
	if requested < MinPageSize {
		return MinPageSize
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
