package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	alarms "unified-nms/internal/alarms/domain"
	telemetry "unified-nms/internal/telemetry/domain"
)

// AlarmRepository is an in-memory repository for tests and storeless demo
// runs. A single mutex serializes Upsert's check-then-act, which keeps the
// one-open-row-per-key invariant under concurrent writers.
type AlarmRepository struct {
	mu   sync.RWMutex
	rows []*alarms.Alarm
	open map[string]*alarms.Alarm
	now  func() time.Time
}

// NewAlarmRepository constructs a repository.
func NewAlarmRepository() *AlarmRepository {
	return &AlarmRepository{
		open: make(map[string]*alarms.Alarm),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Upsert applies an event under the repository lock.
func (r *AlarmRepository) Upsert(ctx context.Context, event telemetry.Event) (*alarms.Alarm, bool, error) {
	_ = ctx
	if r == nil {
		return nil, false, errors.New("alarm repo: nil repository")
	}
	if event.DeviceID == "" || event.Category == "" || event.Type == "" {
		return nil, false, errors.New("alarm repo: event missing identity fields")
	}
	alarmID := alarms.BuildAlarmID(event.DeviceID, event.Category, event.Type)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.open[alarmID]; ok {
		existing.LastSeen = event.Timestamp.UTC()
		existing.OccurrenceCount++
		existing.Severity = event.Severity
		existing.Message = event.Message
		existing.UpdatedAt = r.now()
		copied := *existing
		return &copied, false, nil
	}

	now := r.now()
	alarm := &alarms.Alarm{
		AlarmID:         alarmID,
		DeviceID:        event.DeviceID,
		DeviceType:      event.DeviceType,
		Protocol:        event.Protocol,
		Location:        event.Location,
		Type:            event.Type,
		Category:        event.Category,
		Severity:        event.Severity,
		State:           alarms.StateOpen,
		Message:         event.Message,
		FirstSeen:       event.Timestamp.UTC(),
		LastSeen:        event.Timestamp.UTC(),
		OccurrenceCount: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.rows = append(r.rows, alarm)
	r.open[alarmID] = alarm
	copied := *alarm
	return &copied, true, nil
}

// GetOpen returns the current non-CLOSED generation for an alarm id.
func (r *AlarmRepository) GetOpen(ctx context.Context, alarmID string) (*alarms.Alarm, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alarm repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	alarm, ok := r.open[alarmID]
	if !ok {
		return nil, alarms.ErrNotFound
	}
	copied := *alarm
	return &copied, nil
}

// Transition moves the open generation for alarmID into newState.
func (r *AlarmRepository) Transition(ctx context.Context, alarmID, newState string, at time.Time) (*alarms.Alarm, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alarm repo: nil repository")
	}
	from := alarms.TransitionAllowedFrom(newState)
	if len(from) == 0 {
		return nil, alarms.ErrInvalidTransition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	alarm, ok := r.open[alarmID]
	if !ok {
		return nil, alarms.ErrNotFound
	}
	legal := false
	for _, state := range from {
		if alarm.State == state {
			legal = true
			break
		}
	}
	if !legal {
		return nil, alarms.ErrInvalidTransition
	}

	at = at.UTC()
	alarm.State = newState
	alarm.UpdatedAt = at
	switch newState {
	case alarms.StateAck:
		if alarm.AcknowledgedAt.IsZero() {
			alarm.AcknowledgedAt = at
		}
	case alarms.StateResolved:
		if alarm.ResolvedAt.IsZero() {
			alarm.ResolvedAt = at
		}
	case alarms.StateClosed:
		if alarm.ClosedAt.IsZero() {
			alarm.ClosedAt = at
		}
		delete(r.open, alarmID)
	}
	copied := *alarm
	return &copied, nil
}

// List returns matching alarms, newest-first by first_seen.
func (r *AlarmRepository) List(ctx context.Context, filter alarms.Filter) ([]alarms.Alarm, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alarm repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]alarms.Alarm, 0, len(r.rows))
	for _, alarm := range r.rows {
		if filter.State != "" && alarm.State != filter.State {
			continue
		}
		if filter.Severity != "" && alarm.Severity != filter.Severity {
			continue
		}
		result = append(result, *alarm)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].FirstSeen.After(result[j].FirstSeen)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Statistics aggregates alarm counts.
func (r *AlarmRepository) Statistics(ctx context.Context) (*alarms.Statistics, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alarm repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

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
	for _, alarm := range r.rows {
		stats.ByState[alarm.State]++
		if alarm.State != alarms.StateClosed {
			stats.BySeverity[alarm.Severity]++
			stats.TotalActive++
		}
	}
	return stats, nil
}

// ActiveCountsByDevice counts non-CLOSED alarms per device.
func (r *AlarmRepository) ActiveCountsByDevice(ctx context.Context) (map[string]int, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alarm repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, alarm := range r.rows {
		if alarm.State == alarms.StateClosed {
			continue
		}
		counts[alarm.DeviceID]++
	}
	return counts, nil
}
