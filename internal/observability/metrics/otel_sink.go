package metrics

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelSink flushes counters as OpenTelemetry metric instrument
// increments, for deployments that ship metrics to an OTel collector
// instead of (or alongside) the Postgres table.
type OTelSink struct {
	counter metric.Int64Counter
}

// NewOTelSink creates the "catalog.endpoint.requests" counter instrument
// against the globally configured MeterProvider.
func NewOTelSink() (*OTelSink, error) {
	meter := otel.Meter("catalog.icecat.io/observability/metrics")
	counter, err := meter.Int64Counter("catalog.endpoint.requests",
		metric.WithDescription("Number of catalog endpoint calls observed by status code"))
	if err != nil {
		return nil, fmt.Errorf("observability/metrics: create endpoint request counter: %w", err)
	}
	return &OTelSink{counter: counter}, nil
}

func (s *OTelSink) Flush(ctx context.Context, counts map[Stat]int64) error {
	for stat, count := range counts {
		s.counter.Add(ctx, count, metric.WithAttributes(
			attribute.String("project_id", stat.ProjectID),
			attribute.String("endpoint_id", stat.EndpointID),
			attribute.String("warehouse_id", stat.WarehouseID),
			attribute.String("status_code", strconv.Itoa(stat.StatusCode)),
		))
	}
	return nil
}
