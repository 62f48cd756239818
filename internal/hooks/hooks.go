// Package hooks fans a committed iceberg.Event out to every registered
// endpoint and, optionally, a CloudEvents sink. It is the concrete
// internal/iceberg.Hooks implementation CommitEngine is wired to once at
// least one endpoint or a cloud-event sink is configured.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"catalog.icecat.io/internal/hooks/cloudevents"
	"catalog.icecat.io/internal/iceberg"
	"catalog.icecat.io/internal/logging"
	"catalog.icecat.io/internal/observability/tracing"
)

var log = logging.For("hooks")

// defaultEndpointTimeout bounds one endpoint POST when EndpointConfig
// leaves Timeout unset.
const defaultEndpointTimeout = 10 * time.Second

// EndpointConfig is one registered HTTP hook endpoint. Events is the
// subset of iceberg.EventKind this endpoint fires for; a nil or empty set
// means every event kind.
type EndpointConfig struct {
	ID      string
	URL     string
	Events  map[iceberg.EventKind]bool
	Timeout time.Duration

	// Secret, when set, signs every delivery to this endpoint with a
	// short-lived HS256 bearer token so the receiver can verify the
	// request came from this catalog.
	Secret string
}

func (c EndpointConfig) wants(kind iceberg.EventKind) bool {
	if len(c.Events) == 0 {
		return true
	}
	return c.Events[kind]
}

// HTTPClient is the subset of *http.Client EndpointHooks depends on, so
// tests can substitute a fake transport without a real listener.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// EndpointHooks implements iceberg.Hooks. Fire runs every matching
// endpoint concurrently, waiting for all of them to complete before
// returning, and forwards the event to CloudEvents if configured.
// Endpoint failures are logged, never returned: the commit that
// triggered the event has already succeeded by the time Fire runs.
type EndpointHooks struct {
	Endpoints   []EndpointConfig
	Client      HTTPClient
	CloudEvents *cloudevents.Publisher
}

// NewEndpointHooks builds an EndpointHooks using http.DefaultClient.
func NewEndpointHooks(endpoints []EndpointConfig, publisher *cloudevents.Publisher) *EndpointHooks {
	return &EndpointHooks{Endpoints: endpoints, Client: http.DefaultClient, CloudEvents: publisher}
}

func (h *EndpointHooks) Fire(ctx context.Context, event iceberg.Event) {
	var wg sync.WaitGroup
	for _, endpoint := range h.Endpoints {
		if !endpoint.wants(event.Kind) {
			continue
		}
		endpoint := endpoint
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.send(ctx, endpoint, event); err != nil {
				log.WithField("endpoint_id", endpoint.ID).WithField("event", string(event.Kind)).
					WithField("trace_id", tracing.TraceIDFromContext(ctx)).
					Warnf("hook endpoint delivery failed: %v", err)
			}
		}()
	}
	if h.CloudEvents != nil {
		h.CloudEvents.Publish(string(event.Kind), event.Tabular.String(), event)
	}
	wg.Wait()
}

func (h *EndpointHooks) send(ctx context.Context, endpoint EndpointConfig, event iceberg.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("hooks: marshal event: %w", err)
	}
	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = defaultEndpointTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hooks: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if endpoint.Secret != "" {
		signed, err := signDeliveryToken(endpoint.Secret, endpoint.ID, string(event.Kind))
		if err != nil {
			return fmt.Errorf("hooks: sign delivery to %s: %w", endpoint.ID, err)
		}
		req.Header.Set("Authorization", "Bearer "+signed)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("hooks: post to %s: %w", endpoint.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hooks: endpoint %s returned status %d", endpoint.ID, resp.StatusCode)
	}
	return nil
}
