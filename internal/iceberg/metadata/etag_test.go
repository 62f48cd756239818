package metadata

import "testing"

func TestETagIsDeterministic(t *testing.T) {
	a := ETag("s3://bucket/warehouse/ns/tbl/metadata/v1.metadata.json")
	b := ETag("s3://bucket/warehouse/ns/tbl/metadata/v1.metadata.json")
	if a != b {
		t.Errorf("ETag not deterministic: %q vs %q", a, b)
	}
}

func TestETagDiffersForDifferentLocations(t *testing.T) {
	a := ETag("s3://bucket/warehouse/ns/tbl/metadata/v1.metadata.json")
	b := ETag("s3://bucket/warehouse/ns/tbl/metadata/v2.metadata.json")
	if a == b {
		t.Error("expected different locations to produce different etags")
	}
}
