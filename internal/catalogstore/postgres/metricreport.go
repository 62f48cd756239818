package postgres

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

type MetricReportRepo struct{}

func NewMetricReportRepo() MetricReportRepo { return MetricReportRepo{} }

func (MetricReportRepo) Insert(ctx context.Context, tx catalogstore.Tx, report catalogstore.MetricReport) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO metric_report (report_id, warehouse_id, tabular_id, report_type, report, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, report.ReportID, report.WarehouseID, report.TabularID, report.ReportType, report.Report, report.ReceivedAt)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: insert metric report: %w", err)
	}
	return nil
}

func (MetricReportRepo) ListForTabular(ctx context.Context, tx catalogstore.Tx, tabular ids.TabularID, limit int) ([]catalogstore.MetricReport, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	rows, err := pt.Query(ctx, `
		SELECT report_id, warehouse_id, tabular_id, report_type, report, received_at
		FROM metric_report
		WHERE tabular_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`, tabular, limit)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: list metric reports: %w", err)
	}
	defer rows.Close()

	var out []catalogstore.MetricReport
	for rows.Next() {
		var r catalogstore.MetricReport
		if err := rows.Scan(&r.ReportID, &r.WarehouseID, &r.TabularID, &r.ReportType, &r.Report, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("catalogstore/postgres: scan metric report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: list metric reports: %w", err)
	}
	return out, nil
}
