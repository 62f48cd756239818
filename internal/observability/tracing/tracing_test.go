package tracing

import (
	"context"
	"testing"
)

func TestInitDisabledReturnsNilProvider(t *testing.T) {
	p := Init(Config{Enabled: false})
	if p != nil {
		t.Fatal("a disabled config must return a nil Provider")
	}
}

func TestShutdownOnNilProviderIsNoop(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on a nil Provider must not error, got %v", err)
	}
}
