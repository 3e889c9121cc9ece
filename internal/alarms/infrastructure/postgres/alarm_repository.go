package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	alarms "unified-nms/internal/alarms/domain"
	telemetry "unified-nms/internal/telemetry/domain"
)

const alarmColumns = `alarm_id, device_id, device_type, protocol, location, type, category,
	severity, state, message, first_seen, last_seen, acknowledged_at, resolved_at,
	closed_at, occurrence_count, created_at, updated_at`

// AlarmRepository is a Postgres repository for alarms.
//
// The uniqueness invariant (at most one non-CLOSED row per alarm_id) is
// enforced by a partial unique index; Upsert rides on it with a single
// INSERT ... ON CONFLICT statement, so concurrent events for the same key
// cannot create duplicate open rows.
type AlarmRepository struct {
	db *sql.DB
}

// NewAlarmRepository constructs a repository.
func NewAlarmRepository(db *sql.DB) *AlarmRepository {
	return &AlarmRepository{db: db}
}

// Upsert applies an event atomically: update the open generation for the
// event's identity key, or insert a fresh OPEN row.
func (r *AlarmRepository) Upsert(ctx context.Context, event telemetry.Event) (*alarms.Alarm, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, errors.New("alarm repo: nil db")
	}
	if event.DeviceID == "" || event.Category == "" || event.Type == "" {
		return nil, false, errors.New("alarm repo: event missing identity fields")
	}
	alarmID := alarms.BuildAlarmID(event.DeviceID, event.Category, event.Type)

	row := r.db.QueryRowContext(ctx, `
INSERT INTO alarms (
	alarm_id, device_id, device_type, protocol, location, type, category,
	severity, state, message, first_seen, last_seen, occurrence_count
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $11, 1
)
ON CONFLICT (alarm_id) WHERE state <> 'CLOSED'
DO UPDATE SET
	last_seen = EXCLUDED.last_seen,
	occurrence_count = alarms.occurrence_count + 1,
	severity = EXCLUDED.severity,
	message = EXCLUDED.message,
	updated_at = NOW()
RETURNING `+alarmColumns,
		alarmID,
		event.DeviceID,
		event.DeviceType,
		event.Protocol,
		event.Location,
		event.Type,
		event.Category,
		event.Severity,
		alarms.StateOpen,
		event.Message,
		event.Timestamp.UTC(),
	)
	alarm, err := scanAlarm(row)
	if err != nil {
		return nil, false, err
	}
	if alarm == nil {
		return nil, false, errors.New("alarm repo: upsert returned no row")
	}
	return alarm, alarm.OccurrenceCount == 1, nil
}

// GetOpen returns the current non-CLOSED generation for an alarm id.
func (r *AlarmRepository) GetOpen(ctx context.Context, alarmID string) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alarmColumns+`
FROM alarms
WHERE alarm_id = $1 AND state <> 'CLOSED'`, alarmID)
	alarm, err := scanAlarm(row)
	if err != nil {
		return nil, err
	}
	if alarm == nil {
		return nil, alarms.ErrNotFound
	}
	return alarm, nil
}

// Transition moves the open generation for alarmID into newState. Lifecycle
// timestamps are stamped only on first entry into each state.
func (r *AlarmRepository) Transition(ctx context.Context, alarmID, newState string, at time.Time) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	from := alarms.TransitionAllowedFrom(newState)
	if len(from) == 0 {
		return nil, alarms.ErrInvalidTransition
	}
	quoted := make([]string, 0, len(from))
	for _, state := range from {
		quoted = append(quoted, "'"+state+"'")
	}

	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
UPDATE alarms SET
	state = $2,
	acknowledged_at = CASE WHEN $2 = 'ACK' AND acknowledged_at IS NULL THEN $3 ELSE acknowledged_at END,
	resolved_at = CASE WHEN $2 = 'RESOLVED' AND resolved_at IS NULL THEN $3 ELSE resolved_at END,
	closed_at = CASE WHEN $2 = 'CLOSED' AND closed_at IS NULL THEN $3 ELSE closed_at END,
	updated_at = $3
WHERE alarm_id = $1 AND state <> 'CLOSED' AND state IN (%s)
RETURNING `+alarmColumns, strings.Join(quoted, ", ")),
		alarmID, newState, at.UTC())

	alarm, err := scanAlarm(row)
	if err != nil {
		return nil, err
	}
	if alarm != nil {
		return alarm, nil
	}

	// No row updated: distinguish a missing alarm from an illegal origin state.
	var state string
	err = r.db.QueryRowContext(ctx, `
SELECT state FROM alarms WHERE alarm_id = $1 AND state <> 'CLOSED'`, alarmID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, alarms.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, alarms.ErrInvalidTransition
}

// List returns alarms matching the filter, newest-first by first_seen.
func (r *AlarmRepository) List(ctx context.Context, filter alarms.Filter) ([]alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	query := `
SELECT ` + alarmColumns + `
FROM alarms
WHERE 1=1`
	var args []any
	if filter.State != "" {
		args = append(args, filter.State)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY first_seen DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alarms.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Statistics aggregates alarm counts.
func (r *AlarmRepository) Statistics(ctx context.Context) (*alarms.Statistics, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	stats := &alarms.Statistics{
		ByState: map[string]int{
			alarms.StateOpen:     0,
			alarms.StateAck:      0,
			alarms.StateResolved: 0,
			alarms.StateClosed:   0,
		},
		BySeverity: map[string]int{
			telemetry.SeverityCritical: 0,
			telemetry.SeverityWarning:  0,
		},
	}

	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM alarms GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats.ByState[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sevRows, err := r.db.QueryContext(ctx, `
SELECT severity, COUNT(*) FROM alarms WHERE state <> 'CLOSED' GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer sevRows.Close()
	for sevRows.Next() {
		var severity string
		var count int
		if err := sevRows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
		stats.TotalActive += count
	}
	if err := sevRows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// ActiveCountsByDevice counts non-CLOSED alarms per device.
func (r *AlarmRepository) ActiveCountsByDevice(ctx context.Context) (map[string]int, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT device_id, COUNT(*) FROM alarms WHERE state <> 'CLOSED' GROUP BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var deviceID string
		var count int
		if err := rows.Scan(&deviceID, &count); err != nil {
			return nil, err
		}
		counts[deviceID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

type alarmScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row alarmScanner) (*alarms.Alarm, error) {
	var alarm alarms.Alarm
	var acknowledgedAt sql.NullTime
	var resolvedAt sql.NullTime
	var closedAt sql.NullTime
	if err := row.Scan(
		&alarm.AlarmID,
		&alarm.DeviceID,
		&alarm.DeviceType,
		&alarm.Protocol,
		&alarm.Location,
		&alarm.Type,
		&alarm.Category,
		&alarm.Severity,
		&alarm.State,
		&alarm.Message,
		&alarm.FirstSeen,
		&alarm.LastSeen,
		&acknowledgedAt,
		&resolvedAt,
		&closedAt,
		&alarm.OccurrenceCount,
		&alarm.CreatedAt,
		&alarm.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alarm.FirstSeen = alarm.FirstSeen.UTC()
	alarm.LastSeen = alarm.LastSeen.UTC()
	alarm.CreatedAt = alarm.CreatedAt.UTC()
	alarm.UpdatedAt = alarm.UpdatedAt.UTC()
	if acknowledgedAt.Valid {
		alarm.AcknowledgedAt = acknowledgedAt.Time.UTC()
	}
	if resolvedAt.Valid {
		alarm.ResolvedAt = resolvedAt.Time.UTC()
	}
	if closedAt.Valid {
		alarm.ClosedAt = closedAt.Time.UTC()
	}
	return &alarm, nil
}
