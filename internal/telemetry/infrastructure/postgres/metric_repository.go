package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "unified-nms/internal/telemetry/domain"
)

const defaultMetricTable = "metrics"

// MetricRepository is a Postgres implementation of the metric store. Readings
// are append-only; the numeric and text columns split on whether coercion
// produced a number.
type MetricRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*MetricRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *MetricRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewMetricRepository constructs a repository with the default table name.
func NewMetricRepository(db *sql.DB, opts ...RepositoryOption) *MetricRepository {
	repo := &MetricRepository{db: db, table: defaultMetricTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AppendMetrics inserts a batch of normalized readings in one transaction.
func (r *MetricRepository) AppendMetrics(ctx context.Context, metrics []telemetry.NormalizedMetric) error {
	if r == nil || r.db == nil {
		return errors.New("metric repo: nil db")
	}
	if len(metrics) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	device_id,
	device_type,
	protocol,
	location,
	parameter,
	value_numeric,
	value_text,
	unit,
	ts
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range metrics {
		if m.DeviceID == "" || m.Parameter == "" || m.Timestamp.IsZero() {
			_ = tx.Rollback()
			return errors.New("metric repo: invalid metric")
		}

		valueNumeric := sql.NullFloat64{}
		valueText := sql.NullString{}
		if number, ok := telemetry.NumericValue(m.Value); ok {
			valueNumeric = sql.NullFloat64{Float64: number, Valid: true}
		} else {
			valueText = sql.NullString{String: fmt.Sprintf("%v", m.Value), Valid: true}
		}

		if _, err := stmt.ExecContext(
			ctx,
			m.DeviceID,
			m.DeviceType,
			m.Protocol,
			m.Location,
			m.Parameter,
			valueNumeric,
			valueText,
			m.Unit,
			m.Timestamp.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// QueryMetrics returns stored readings, newest-first.
func (r *MetricRepository) QueryMetrics(ctx context.Context, filter telemetry.MetricFilter) ([]telemetry.NormalizedMetric, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("metric repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT device_id, device_type, protocol, location, parameter, value_numeric, value_text, unit, ts
FROM %s`, r.table)
	var (
		conditions []string
		args       []any
	)
	if filter.DeviceID != "" {
		args = append(args, filter.DeviceID)
		conditions = append(conditions, fmt.Sprintf("device_id = $%d", len(args)))
	}
	if filter.Parameter != "" {
		args = append(args, filter.Parameter)
		conditions = append(conditions, fmt.Sprintf("parameter = $%d", len(args)))
	}
	for i, condition := range conditions {
		if i == 0 {
			query += "\nWHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf("\nORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.NormalizedMetric
	for rows.Next() {
		var (
			m            telemetry.NormalizedMetric
			valueNumeric sql.NullFloat64
			valueText    sql.NullString
		)
		if err := rows.Scan(
			&m.DeviceID,
			&m.DeviceType,
			&m.Protocol,
			&m.Location,
			&m.Parameter,
			&valueNumeric,
			&valueText,
			&m.Unit,
			&m.Timestamp,
		); err != nil {
			return nil, err
		}
		if valueNumeric.Valid {
			m.Value = valueNumeric.Float64
		} else if valueText.Valid {
			m.Value = valueText.String
		}
		m.Timestamp = m.Timestamp.UTC()
		result = append(result, m)
	}
	return result, rows.Err()
}

// DeviceSummaries aggregates stored readings per device. Alarm counts are
// filled in by the caller.
func (r *MetricRepository) DeviceSummaries(ctx context.Context) ([]telemetry.DeviceSummary, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("metric repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT device_id,
	MAX(device_type) AS device_type,
	MAX(protocol) AS protocol,
	MAX(location) AS location,
	MAX(ts) AS last_seen,
	COUNT(*) AS metric_count
FROM %s
GROUP BY device_id
ORDER BY device_id`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.DeviceSummary
	for rows.Next() {
		var summary telemetry.DeviceSummary
		if err := rows.Scan(
			&summary.DeviceID,
			&summary.DeviceType,
			&summary.Protocol,
			&summary.Location,
			&summary.LastSeen,
			&summary.MetricCount,
		); err != nil {
			return nil, err
		}
		summary.LastSeen = summary.LastSeen.UTC()
		result = append(result, summary)
	}
	return result, rows.Err()
}
