package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	alarms "unified-nms/internal/alarms/domain"
	"unified-nms/internal/alarms/infrastructure/memory"
	telemetry "unified-nms/internal/telemetry/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticThresholds map[string]telemetry.Threshold

func (s staticThresholds) Thresholds() map[string]telemetry.Threshold { return s }

type recordingNotifier struct {
	mu     sync.Mutex
	events []AlarmEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event AlarmEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]string, 0, len(n.events))
	for _, event := range n.events {
		types = append(types, event.Type)
	}
	return types
}

func warningThresholds(warning float64) staticThresholds {
	return staticThresholds{"cpu_usage": {Warning: &warning}}
}

func newTestEngine(t *testing.T, repo alarms.Repository, thresholds telemetry.ThresholdProvider, opts ...EngineOption) *Engine {
	t.Helper()
	engine, err := NewEngine(repo, thresholds, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func cpuEvent(deviceID string, at time.Time) telemetry.Event {
	return telemetry.Event{
		DeviceID:  deviceID,
		Type:      telemetry.EventTypeThresholdExceeded,
		Category:  "cpu_usage",
		Severity:  telemetry.SeverityWarning,
		State:     telemetry.EventStateOpen,
		Message:   "cpu_usage exceeded warning threshold",
		Timestamp: at,
	}
}

func cpuMetric(deviceID string, value any) telemetry.NormalizedMetric {
	return telemetry.NormalizedMetric{
		DeviceID:  deviceID,
		Parameter: "cpu_usage",
		Value:     value,
		Unit:      "percent",
		Timestamp: time.Now().UTC(),
	}
}

func TestAutoResolve_BelowWarningBound(t *testing.T) {
	repo := memory.NewAlarmRepository()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, repo, warningThresholds(80), WithClock(clock))
	ctx := context.Background()

	if err := engine.ProcessEvent(ctx, cpuEvent("sw1", clock.Now())); err != nil {
		t.Fatalf("process event: %v", err)
	}

	for _, tc := range []struct {
		value     float64
		wantState string
	}{
		{81, alarms.StateOpen},
		{80, alarms.StateOpen},
		{79, alarms.StateResolved},
	} {
		if err := engine.RunMaintenance(ctx, []telemetry.NormalizedMetric{cpuMetric("sw1", tc.value)}); err != nil {
			t.Fatalf("maintenance: %v", err)
		}
		list, err := repo.List(ctx, alarms.Filter{Limit: 10})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected one alarm, got %d", len(list))
		}
		if list[0].State != tc.wantState {
			t.Fatalf("value %g: expected state %s, got %s", tc.value, tc.wantState, list[0].State)
		}
	}
}

func TestAutoResolve_SkipsAbsentAndNonNumeric(t *testing.T) {
	repo := memory.NewAlarmRepository()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, repo, warningThresholds(80), WithClock(clock))
	ctx := context.Background()

	if err := engine.ProcessEvent(ctx, cpuEvent("sw1", clock.Now())); err != nil {
		t.Fatalf("process event: %v", err)
	}

	// The snapshot is whatever the caller last observed; a device that is
	// absent from it is skipped, not resolved. Same for non-numeric values.
	snapshots := [][]telemetry.NormalizedMetric{
		nil,
		{cpuMetric("other-device", 10.0)},
		{cpuMetric("sw1", "offline")},
	}
	for i, snapshot := range snapshots {
		if err := engine.RunMaintenance(ctx, snapshot); err != nil {
			t.Fatalf("maintenance %d: %v", i, err)
		}
		alarm, err := repo.GetOpen(ctx, alarms.BuildAlarmID("sw1", "cpu_usage", telemetry.EventTypeThresholdExceeded))
		if err != nil {
			t.Fatalf("get open %d: %v", i, err)
		}
		if alarm.State != alarms.StateOpen {
			t.Fatalf("snapshot %d: expected OPEN, got %s", i, alarm.State)
		}
	}
}

func TestAutoResolve_RequiresWarningBound(t *testing.T) {
	repo := memory.NewAlarmRepository()
	critical := 90.0
	thresholds := staticThresholds{"cpu_usage": {Critical: &critical}}
	engine := newTestEngine(t, repo, thresholds)
	ctx := context.Background()

	if err := engine.ProcessEvent(ctx, cpuEvent("sw1", time.Now().UTC())); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if err := engine.RunMaintenance(ctx, []telemetry.NormalizedMetric{cpuMetric("sw1", 1.0)}); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	alarm, err := repo.GetOpen(ctx, alarms.BuildAlarmID("sw1", "cpu_usage", telemetry.EventTypeThresholdExceeded))
	if err != nil {
		t.Fatalf("get open: %v", err)
	}
	if alarm.State != alarms.StateOpen {
		t.Fatalf("expected OPEN without a warning bound, got %s", alarm.State)
	}
}

func TestAutoClose_TimeoutBoundary(t *testing.T) {
	repo := memory.NewAlarmRepository()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, repo, warningThresholds(80),
		WithClock(clock), WithAutoCloseTimeout(300*time.Second))
	ctx := context.Background()

	if err := engine.ProcessEvent(ctx, cpuEvent("sw1", clock.Now())); err != nil {
		t.Fatalf("process event: %v", err)
	}
	alarmID := alarms.BuildAlarmID("sw1", "cpu_usage", telemetry.EventTypeThresholdExceeded)
	if _, err := engine.Resolve(ctx, alarmID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	clock.Advance(299 * time.Second)
	if err := engine.RunMaintenance(ctx, nil); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	alarm, err := repo.GetOpen(ctx, alarmID)
	if err != nil {
		t.Fatalf("get open: %v", err)
	}
	if alarm.State != alarms.StateResolved {
		t.Fatalf("expected RESOLVED at 299s, got %s", alarm.State)
	}

	clock.Advance(time.Second)
	if err := engine.RunMaintenance(ctx, nil); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if _, err := repo.GetOpen(ctx, alarmID); !errors.Is(err, alarms.ErrNotFound) {
		t.Fatalf("expected alarm closed at 300s, got %v", err)
	}
	list, err := repo.List(ctx, alarms.Filter{State: alarms.StateClosed, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ClosedAt.IsZero() {
		t.Fatalf("expected one closed alarm with closed_at set, got %+v", list)
	}
}

func TestOperatorTransitions(t *testing.T) {
	repo := memory.NewAlarmRepository()
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, repo, warningThresholds(80), WithNotifier(notifier))
	ctx := context.Background()

	if _, err := engine.Acknowledge(ctx, "unknown"); !errors.Is(err, alarms.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := engine.ProcessEvent(ctx, cpuEvent("sw1", time.Now().UTC())); err != nil {
		t.Fatalf("process event: %v", err)
	}
	alarmID := alarms.BuildAlarmID("sw1", "cpu_usage", telemetry.EventTypeThresholdExceeded)

	acked, err := engine.Acknowledge(ctx, alarmID)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.State != alarms.StateAck || acked.AcknowledgedAt.IsZero() {
		t.Fatalf("unexpected alarm after ack: %+v", acked)
	}

	closed, err := engine.Close(ctx, alarmID)
	if err != nil {
		t.Fatalf("close from ACK: %v", err)
	}
	if closed.State != alarms.StateClosed {
		t.Fatalf("expected CLOSED, got %s", closed.State)
	}

	types := notifier.Types()
	want := []string{LifecycleOpened, LifecycleAcknowledged, LifecycleClosed}
	if len(types) != len(want) {
		t.Fatalf("expected %d notifications, got %v", len(want), types)
	}
	for i, eventType := range want {
		if types[i] != eventType {
			t.Fatalf("notification %d: expected %s, got %s", i, eventType, types[i])
		}
	}
}

func TestStatistics(t *testing.T) {
	repo := memory.NewAlarmRepository()
	engine := newTestEngine(t, repo, warningThresholds(80))
	ctx := context.Background()
	at := time.Now().UTC()

	critical := cpuEvent("sw1", at)
	critical.Severity = telemetry.SeverityCritical
	if err := engine.ProcessEvent(ctx, critical); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if err := engine.ProcessEvent(ctx, cpuEvent("sw2", at)); err != nil {
		t.Fatalf("process event: %v", err)
	}
	if _, err := engine.Resolve(ctx, alarms.BuildAlarmID("sw2", "cpu_usage", telemetry.EventTypeThresholdExceeded)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	stats, err := engine.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.ByState[alarms.StateOpen] != 1 || stats.ByState[alarms.StateResolved] != 1 {
		t.Fatalf("unexpected by_state: %+v", stats.ByState)
	}
	if stats.BySeverity[telemetry.SeverityCritical] != 1 || stats.BySeverity[telemetry.SeverityWarning] != 1 {
		t.Fatalf("unexpected by_severity: %+v", stats.BySeverity)
	}
	if stats.TotalActive != 2 {
		t.Fatalf("expected 2 active, got %d", stats.TotalActive)
	}
}

func TestRunMaintenance_Idempotent(t *testing.T) {
	repo := memory.NewAlarmRepository()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, repo, warningThresholds(80), WithClock(clock))
	ctx := context.Background()

	if err := engine.ProcessEvent(ctx, cpuEvent("sw1", clock.Now())); err != nil {
		t.Fatalf("process event: %v", err)
	}
	snapshot := []telemetry.NormalizedMetric{cpuMetric("sw1", 10.0)}
	for i := 0; i < 3; i++ {
		if err := engine.RunMaintenance(ctx, snapshot); err != nil {
			t.Fatalf("maintenance %d: %v", i, err)
		}
	}
	list, err := repo.List(ctx, alarms.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].State != alarms.StateResolved {
		t.Fatalf("expected one resolved alarm, got %+v", list)
	}
}
