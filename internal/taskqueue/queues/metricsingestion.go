package queues

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/taskqueue"
)

// metricReportPayload mirrors the body the metric report endpoint accepts
// from query engines (Spark/Trino-style scan-report and commit-report
// payloads), stored verbatim rather than parsed field-by-field.
type metricReportPayload struct {
	ReportID   string          `json:"report_id"`
	TabularID  string          `json:"tabular_id"`
	ReportType string          `json:"report_type"`
	Report     json.RawMessage `json:"report"`
}

// MetricsIngestionHandler implements the metrics_ingestion queue: persists
// one scan or commit report submitted through the metric report endpoint.
type MetricsIngestionHandler struct {
	Transactor    catalogstore.Transactor
	MetricReports catalogstore.MetricReportRepo
}

func (h *MetricsIngestionHandler) QueueName() string { return taskqueue.QueueNameMetricsIngestion }

func (h *MetricsIngestionHandler) Handle(ctx context.Context, task *catalogstore.Task, _ taskqueue.Heartbeater) error {
	var payload metricReportPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("taskqueue/queues: decode metric report payload: %w", err)
	}
	tabularID, err := ids.ParseTabularID(payload.TabularID)
	if err != nil {
		return fmt.Errorf("taskqueue/queues: parse tabular id: %w", err)
	}
	reportID, err := ids.ParseReportID(payload.ReportID)
	if err != nil {
		return fmt.Errorf("taskqueue/queues: parse report id: %w", err)
	}

	tx, err := h.Transactor.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	report := catalogstore.MetricReport{
		ReportID:    reportID,
		WarehouseID: task.WarehouseID,
		TabularID:   tabularID,
		ReportType:  payload.ReportType,
		Report:      payload.Report,
		ReceivedAt:  time.Now(),
	}
	if err := h.MetricReports.Insert(ctx, tx, report); err != nil {
		return fmt.Errorf("taskqueue/queues: insert metric report: %w", err)
	}
	return tx.Commit(ctx)
}

// MetricReportInput builds the TaskInput the metric report endpoint
// enqueues for one incoming report. reportID is minted by the endpoint
// itself so the idempotency key is stable across retries of the same
// enqueue call.
func MetricReportInput(warehouse ids.WarehouseID, tabular ids.TabularID, reportID ids.ReportID, reportType string, report json.RawMessage) (catalogstore.TaskInput, error) {
	payload, err := json.Marshal(metricReportPayload{
		ReportID:   reportID.String(),
		TabularID:  tabular.String(),
		ReportType: reportType,
		Report:     report,
	})
	if err != nil {
		return catalogstore.TaskInput{}, fmt.Errorf("taskqueue/queues: marshal metric report payload: %w", err)
	}
	return catalogstore.TaskInput{
		QueueName:      taskqueue.QueueNameMetricsIngestion,
		WarehouseID:    warehouse,
		EntityKind:     catalogstore.TaskEntityTabular,
		EntityID:       tabular.String(),
		ScheduledFor:   time.Now(),
		Payload:        payload,
		IdempotencyKey: ids.TaskIdempotencyKey(warehouse, taskqueue.QueueNameMetricsIngestion, reportID.String()),
	}, nil
}
