package iceberg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"catalog.icecat.io/internal/iceberg/metadata"
	"catalog.icecat.io/internal/storageprofile/hdfs"
)

// LocalMetadataIO serves storageprofile.TestProfile and
// storageprofile.HDFSProfile tabulars, whose BaseLocation is a filesystem
// path (file:// or hdfs://) rather than an object-store URI. Writes go
// through hdfs.AtomicWrite so a crash mid-commit never leaves a partial
// metadata file visible to a concurrent load_table.
type LocalMetadataIO struct {
	writer *hdfs.Vendor
}

func NewLocalMetadataIO() *LocalMetadataIO {
	return &LocalMetadataIO{writer: hdfs.New()}
}

func toFilePath(location string) string {
	for _, scheme := range []string{"file://", "hdfs://"} {
		if strings.HasPrefix(location, scheme) {
			return strings.TrimPrefix(location, scheme)
		}
	}
	return location
}

func (io *LocalMetadataIO) Read(ctx context.Context, location string) (metadata.TableMetadata, error) {
	b, err := os.ReadFile(toFilePath(location))
	if err != nil {
		return metadata.TableMetadata{}, fmt.Errorf("iceberg: read %s: %w", location, err)
	}
	return unmarshalMetadata(b)
}

func (io *LocalMetadataIO) Write(ctx context.Context, root string, next metadata.TableMetadata) (string, error) {
	path := toFilePath(fmt.Sprintf("%s/metadata/%d.metadata.json", strings.TrimSuffix(root, "/"), next.LastUpdatedMs))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("iceberg: mkdir for %s: %w", path, err)
	}
	body, err := marshalMetadata(next)
	if err != nil {
		return "", err
	}
	if err := hdfs.AtomicWrite(path, body); err != nil {
		return "", fmt.Errorf("iceberg: atomic write %s: %w", path, err)
	}
	scheme := "file://"
	if strings.HasPrefix(root, "hdfs://") {
		scheme = "hdfs://"
	}
	return scheme + path, nil
}
