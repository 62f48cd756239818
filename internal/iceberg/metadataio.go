// Package iceberg is the commit/metadata state machine (CommitEngine): it
// wires internal/catalogstore (entity persistence), internal/storageprofile
// (location validation + credential vending), and internal/iceberg/metadata
// (the Requirement/Update state machine + etag) into the table and view
// operations the REST Catalog protocol requires: create, register, load,
// commit, drop, rename, and undrop, for both tables and views.
package iceberg

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog.icecat.io/internal/iceberg/metadata"
)

// MetadataIO reads and writes the TableMetadata document a tabular's
// metadata_location points at. The catalog never keeps this payload in its
// own database, only the location string, so every load_table and
// commit_table round-trips through this interface to the warehouse's
// object store.
type MetadataIO interface {
	Read(ctx context.Context, location string) (metadata.TableMetadata, error)
	// Write persists next at a newly minted, version-numbered location
	// under root (the tabular's base location) and returns that location.
	Write(ctx context.Context, root string, next metadata.TableMetadata) (location string, err error)
}

func marshalMetadata(m metadata.TableMetadata) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("iceberg: marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (metadata.TableMetadata, error) {
	var m metadata.TableMetadata
	if err := json.Unmarshal(b, &m); err != nil {
		return metadata.TableMetadata{}, fmt.Errorf("iceberg: unmarshal metadata: %w", err)
	}
	return m, nil
}
