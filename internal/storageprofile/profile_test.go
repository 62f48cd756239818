package storageprofile

import (
	"encoding/json"
	"testing"
)

func TestDecodeS3Profile(t *testing.T) {
	raw := json.RawMessage(`{"bucket":"my-bucket","region":"us-east-1","prefix":"warehouse"}`)
	p, err := Decode(KindS3, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s3p, ok := p.(S3Profile)
	if !ok {
		t.Fatalf("expected S3Profile, got %T", p)
	}
	if got, want := s3p.BaseLocation(), "s3://my-bucket/warehouse"; got != want {
		t.Errorf("BaseLocation() = %q, want %q", got, want)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode(Kind("unknown"), json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for unknown profile kind")
	}
}

func TestRequireAllowedLocationAcceptsUnderBase(t *testing.T) {
	p := S3Profile{Bucket: "b", Region: "us-east-1", Prefix: "wh"}
	if err := RequireAllowedLocation(p, "s3://b/wh/ns/tbl"); err != nil {
		t.Errorf("unexpected error for location under base: %v", err)
	}
	if err := RequireAllowedLocation(p, p.BaseLocation()); err != nil {
		t.Errorf("unexpected error for the base location itself: %v", err)
	}
}

func TestRequireAllowedLocationRejectsEscapingBase(t *testing.T) {
	p := S3Profile{Bucket: "b", Region: "us-east-1", Prefix: "wh"}
	if err := RequireAllowedLocation(p, "s3://other-bucket/ns/tbl"); err == nil {
		t.Error("expected error for location outside warehouse base")
	}
	if err := RequireAllowedLocation(p, "s3://b/wh-sibling/ns"); err == nil {
		t.Error("expected error for a sibling prefix sharing only a string prefix")
	}
}

func TestDefaultNamespaceAndTabularLocation(t *testing.T) {
	p := S3Profile{Bucket: "b", Region: "us-east-1", Prefix: "wh"}
	ns := DefaultNamespaceLocation(p, []string{"sales", "orders"})
	if got, want := ns, "s3://b/wh/sales/orders"; got != want {
		t.Errorf("DefaultNamespaceLocation() = %q, want %q", got, want)
	}
	tbl := DefaultTabularLocation(ns, "fact_orders")
	if got, want := tbl, "s3://b/wh/sales/orders/fact_orders"; got != want {
		t.Errorf("DefaultTabularLocation() = %q, want %q", got, want)
	}
}
