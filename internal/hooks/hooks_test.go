package hooks

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"catalog.icecat.io/internal/iceberg"
	"catalog.icecat.io/internal/ids"
)

type fakeHTTPClient struct {
	mu    sync.Mutex
	calls []string
	do    func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL.String())
	f.mu.Unlock()
	if f.do != nil {
		return f.do(req)
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestFireOnlyCallsEndpointsSubscribedToTheEventKind(t *testing.T) {
	client := &fakeHTTPClient{}
	h := &EndpointHooks{
		Client: client,
		Endpoints: []EndpointConfig{
			{ID: "all", URL: "http://sink.example/all"},
			{ID: "commits-only", URL: "http://sink.example/commits", Events: map[iceberg.EventKind]bool{iceberg.EventTableCommitted: true}},
			{ID: "drops-only", URL: "http://sink.example/drops", Events: map[iceberg.EventKind]bool{iceberg.EventTableDropped: true}},
		},
	}

	h.Fire(context.Background(), iceberg.Event{Kind: iceberg.EventTableCommitted, Warehouse: ids.NewWarehouseID(), Tabular: ids.NewTabularID()})

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 endpoint calls (all + commits-only), got %v", client.calls)
	}
}

func TestFireNeverPropagatesEndpointFailure(t *testing.T) {
	client := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusInternalServerError, Body: http.NoBody}, nil
	}}
	h := &EndpointHooks{Client: client, Endpoints: []EndpointConfig{{ID: "flaky", URL: "http://sink.example/flaky"}}}

	h.Fire(context.Background(), iceberg.Event{Kind: iceberg.EventTableDropped}) // must return despite the 500
}

func TestFireWaitsForAllEndpointsBeforeReturning(t *testing.T) {
	var active int
	var mu sync.Mutex
	client := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		active++
		mu.Unlock()
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}}
	h := &EndpointHooks{Client: client, Endpoints: []EndpointConfig{
		{ID: "one", URL: "http://sink.example/1"},
		{ID: "two", URL: "http://sink.example/2"},
		{ID: "three", URL: "http://sink.example/3"},
	}}
	h.Fire(context.Background(), iceberg.Event{Kind: iceberg.EventViewCreated})

	mu.Lock()
	defer mu.Unlock()
	if active != 3 {
		t.Fatalf("expected all 3 endpoints invoked before Fire returned, got %d", active)
	}
}

func TestFireSignsDeliveryWhenEndpointHasASecret(t *testing.T) {
	var authHeader string
	client := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		authHeader = req.Header.Get("Authorization")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}}
	h := &EndpointHooks{Client: client, Endpoints: []EndpointConfig{
		{ID: "signed", URL: "http://sink.example/signed", Secret: "shared-secret"},
	}}
	h.Fire(context.Background(), iceberg.Event{Kind: iceberg.EventTableCommitted})

	if !strings.HasPrefix(authHeader, "Bearer ") {
		t.Fatalf("expected a Bearer token, got %q", authHeader)
	}
	token, err := jwt.Parse([]byte(strings.TrimPrefix(authHeader, "Bearer ")), jwt.WithKey(jwa.HS256, []byte("shared-secret")))
	if err != nil {
		t.Fatalf("delivery token did not verify against the endpoint secret: %v", err)
	}
	if token.Subject() != "signed" {
		t.Fatalf("expected subject %q, got %q", "signed", token.Subject())
	}
}

func TestFireLeavesUnsignedEndpointsWithoutAnAuthHeader(t *testing.T) {
	var authHeader string
	client := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		authHeader = req.Header.Get("Authorization")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}}
	h := &EndpointHooks{Client: client, Endpoints: []EndpointConfig{
		{ID: "unsigned", URL: "http://sink.example/unsigned"},
	}}
	h.Fire(context.Background(), iceberg.Event{Kind: iceberg.EventTableCommitted})

	if authHeader != "" {
		t.Fatalf("expected no Authorization header without a configured secret, got %q", authHeader)
	}
}
