package application

import (
	"context"
	"errors"
	"log"
	"time"

	alarms "unified-nms/internal/alarms/domain"
	"unified-nms/internal/observability/metrics"
	telemetry "unified-nms/internal/telemetry/domain"
)

// AlarmNotifier publishes alarm lifecycle events.
type AlarmNotifier interface {
	Notify(ctx context.Context, event AlarmEvent)
}

// AlarmEvent represents a lifecycle update.
type AlarmEvent struct {
	Type  string       `json:"type"`
	Alarm alarms.Alarm `json:"alarm"`
}

// Lifecycle event types carried by AlarmEvent.
const (
	LifecycleOpened       = "opened"
	LifecycleRepeated     = "repeated"
	LifecycleAcknowledged = "acknowledged"
	LifecycleResolved     = "resolved"
	LifecycleClosed       = "closed"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

const defaultAutoCloseTimeout = 5 * time.Minute
const defaultMaintenanceLimit = 1000

// Engine drives the alarm lifecycle: event-driven dedup via the store's atomic
// upsert, operator transitions, and the periodic auto-resolve / auto-close
// maintenance passes.
type Engine struct {
	repo             alarms.Repository
	thresholds       telemetry.ThresholdProvider
	notifier         AlarmNotifier
	clock            Clock
	logger           *log.Logger
	autoCloseTimeout time.Duration
	maintenanceLimit int
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlarmNotifier) EngineOption {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithAutoCloseTimeout overrides how long a RESOLVED alarm lingers before
// auto-close.
func WithAutoCloseTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.autoCloseTimeout = timeout
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine constructs an engine.
func NewEngine(repo alarms.Repository, thresholds telemetry.ThresholdProvider, opts ...EngineOption) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("alarm engine: nil repository")
	}
	if thresholds == nil {
		return nil, errors.New("alarm engine: nil threshold provider")
	}
	engine := &Engine{
		repo:             repo,
		thresholds:       thresholds,
		clock:            systemClock{},
		logger:           log.Default(),
		autoCloseTimeout: defaultAutoCloseTimeout,
		maintenanceLimit: defaultMaintenanceLimit,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// ProcessEvent is the sole event-driven entry point: it delegates to the
// store's atomic upsert. Dedup is structural, via the identity key.
func (e *Engine) ProcessEvent(ctx context.Context, event telemetry.Event) error {
	if e == nil {
		return errors.New("alarm engine: nil engine")
	}
	alarm, created, err := e.repo.Upsert(ctx, event)
	if err != nil {
		return err
	}
	if created {
		e.notify(ctx, LifecycleOpened, *alarm)
	} else {
		e.notify(ctx, LifecycleRepeated, *alarm)
	}
	return nil
}

// Acknowledge marks an alarm acknowledged (operator action).
func (e *Engine) Acknowledge(ctx context.Context, alarmID string) (*alarms.Alarm, error) {
	return e.transition(ctx, alarmID, alarms.StateAck, LifecycleAcknowledged)
}

// Resolve marks an alarm resolved (operator action).
func (e *Engine) Resolve(ctx context.Context, alarmID string) (*alarms.Alarm, error) {
	return e.transition(ctx, alarmID, alarms.StateResolved, LifecycleResolved)
}

// Close closes an alarm (operator action). Valid from any non-CLOSED state.
func (e *Engine) Close(ctx context.Context, alarmID string) (*alarms.Alarm, error) {
	return e.transition(ctx, alarmID, alarms.StateClosed, LifecycleClosed)
}

func (e *Engine) transition(ctx context.Context, alarmID, newState, lifecycle string) (*alarms.Alarm, error) {
	if e == nil {
		return nil, errors.New("alarm engine: nil engine")
	}
	if alarmID == "" {
		return nil, errors.New("alarm engine: alarm id required")
	}
	alarm, err := e.repo.Transition(ctx, alarmID, newState, e.clock.Now())
	if err != nil {
		return nil, err
	}
	e.notify(ctx, lifecycle, *alarm)
	return alarm, nil
}

// RunMaintenance runs the auto-resolve and auto-close passes. Both are
// idempotent and safe to repeat. The metric snapshot reflects whatever the
// caller last observed; alarms without a matching entry are skipped.
func (e *Engine) RunMaintenance(ctx context.Context, current []telemetry.NormalizedMetric) error {
	if e == nil {
		return errors.New("alarm engine: nil engine")
	}
	start := e.clock.Now()
	err := e.autoResolve(ctx, current)
	if err == nil {
		err = e.autoClose(ctx)
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveMaintenance(result, e.clock.Now().Sub(start))
	return err
}

func (e *Engine) autoResolve(ctx context.Context, current []telemetry.NormalizedMetric) error {
	if len(current) == 0 {
		return nil
	}
	latest := make(map[string]telemetry.NormalizedMetric, len(current))
	for _, metric := range current {
		latest[metric.DeviceID+"|"+metric.Parameter] = metric
	}
	thresholds := e.thresholds.Thresholds()

	var active []alarms.Alarm
	for _, state := range []string{alarms.StateOpen, alarms.StateAck} {
		list, err := e.repo.List(ctx, alarms.Filter{State: state, Limit: e.maintenanceLimit})
		if err != nil {
			return err
		}
		active = append(active, list...)
	}

	for _, alarm := range active {
		metric, ok := latest[alarm.DeviceID+"|"+alarm.Category]
		if !ok {
			continue
		}
		threshold, ok := thresholds[alarm.Category]
		if !ok || threshold.Warning == nil {
			continue
		}
		value, ok := telemetry.NumericValue(metric.Value)
		if !ok {
			continue
		}
		if value >= *threshold.Warning {
			continue
		}
		resolved, err := e.repo.Transition(ctx, alarm.AlarmID, alarms.StateResolved, e.clock.Now())
		if errors.Is(err, alarms.ErrNotFound) || errors.Is(err, alarms.ErrInvalidTransition) {
			// Raced with an operator transition; nothing to do.
			continue
		}
		if err != nil {
			return err
		}
		e.logger.Printf("alarm auto-resolved: id=%s value=%g warning=%g", alarm.AlarmID, value, *threshold.Warning)
		e.notify(ctx, LifecycleResolved, *resolved)
	}
	return nil
}

func (e *Engine) autoClose(ctx context.Context) error {
	resolved, err := e.repo.List(ctx, alarms.Filter{State: alarms.StateResolved, Limit: e.maintenanceLimit})
	if err != nil {
		return err
	}
	now := e.clock.Now()
	for _, alarm := range resolved {
		if alarm.ResolvedAt.IsZero() {
			continue
		}
		if now.Sub(alarm.ResolvedAt) < e.autoCloseTimeout {
			continue
		}
		closed, err := e.repo.Transition(ctx, alarm.AlarmID, alarms.StateClosed, now)
		if errors.Is(err, alarms.ErrNotFound) || errors.Is(err, alarms.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return err
		}
		e.logger.Printf("alarm auto-closed: id=%s resolved_for=%s", alarm.AlarmID, now.Sub(alarm.ResolvedAt))
		e.notify(ctx, LifecycleClosed, *closed)
	}
	return nil
}

// Statistics aggregates current alarm rows.
func (e *Engine) Statistics(ctx context.Context) (*alarms.Statistics, error) {
	if e == nil {
		return nil, errors.New("alarm engine: nil engine")
	}
	return e.repo.Statistics(ctx)
}

// List exposes filtered alarm queries.
func (e *Engine) List(ctx context.Context, filter alarms.Filter) ([]alarms.Alarm, error) {
	if e == nil {
		return nil, errors.New("alarm engine: nil engine")
	}
	return e.repo.List(ctx, filter)
}

func (e *Engine) notify(ctx context.Context, lifecycle string, alarm alarms.Alarm) {
	metrics.IncAlarmEvent(lifecycle)
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, AlarmEvent{Type: lifecycle, Alarm: alarm})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
