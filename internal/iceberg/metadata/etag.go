package metadata

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ETag derives the LoadTableResult ETag header from a metadata location
// via xxh3_64(metadata_location), the hash the wire protocol requires.
func ETag(metadataLocation string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(metadataLocation))
}
