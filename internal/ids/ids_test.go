package ids

import (
	"encoding/json"
	"testing"
)

func TestWarehouseIDJSONRoundTrip(t *testing.T) {
	want := NewWarehouseID()

	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got WarehouseID
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %s want %s", got, want)
	}
}

func TestParseWarehouseIDRejectsGarbage(t *testing.T) {
	if _, err := ParseWarehouseID("not-a-uuid"); err == nil {
		t.Fatal("expected error for malformed warehouse id")
	}
}

func TestTaskIdempotencyKeyDeterministic(t *testing.T) {
	wh := NewWarehouseID()

	a := TaskIdempotencyKey(wh, "tabular_expiration", "tabular:abc")
	b := TaskIdempotencyKey(wh, "tabular_expiration", "tabular:abc")
	if a != b {
		t.Fatalf("expected deterministic key, got %s and %s", a, b)
	}

	c := TaskIdempotencyKey(wh, "tabular_expiration", "tabular:xyz")
	if a == c {
		t.Fatal("expected different natural keys to produce different ids")
	}

	otherWarehouse := NewWarehouseID()
	d := TaskIdempotencyKey(otherWarehouse, "tabular_expiration", "tabular:abc")
	if a == d {
		t.Fatal("expected different warehouses to produce different ids for the same natural key")
	}
}

func TestScanWarehouseIDFromString(t *testing.T) {
	want := NewWarehouseID()
	var got WarehouseID
	if err := (&got).Scan(want.String()); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got != want {
		t.Errorf("scan mismatch: got %s want %s", got, want)
	}
}
