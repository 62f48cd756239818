package postgres

import (
	"testing"
	"time"
)

func TestBackoffForGrowsExponentiallyAndCaps(t *testing.T) {
	cases := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
	}
	for _, c := range cases {
		got := backoffFor(c.attempt)
		if got != c.expected {
			t.Errorf("backoffFor(%d) = %v, want %v", c.attempt, got, c.expected)
		}
	}
}

func TestBackoffForCapsAtMaxBackoff(t *testing.T) {
	got := backoffFor(20)
	if got != maxBackoff {
		t.Errorf("backoffFor(20) = %v, want cap %v", got, maxBackoff)
	}
}
