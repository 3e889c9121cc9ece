package alarms

import (
	"context"
	"time"

	telemetry "unified-nms/internal/telemetry/domain"
)

// Filter selects alarms; empty fields match everything.
type Filter struct {
	State    string
	Severity string
	Limit    int
}

// Statistics aggregates current alarm rows. BySeverity counts non-CLOSED
// alarms only.
type Statistics struct {
	ByState     map[string]int `json:"by_state"`
	BySeverity  map[string]int `json:"by_severity"`
	TotalActive int            `json:"total_active"`
}

// Repository is the persistence boundary for alarms.
//
// Upsert must execute its check-then-act (find non-CLOSED row by identity key,
// then insert or update) as a single atomic unit with respect to concurrent
// callers sharing the same key.
type Repository interface {
	// Upsert applies an event: it updates the existing non-CLOSED row for the
	// event's identity key, or creates a fresh OPEN row with occurrence 1.
	// The returned bool is true when a new row was created.
	Upsert(ctx context.Context, event telemetry.Event) (*Alarm, bool, error)

	// GetOpen returns the current non-CLOSED generation for an alarm id, or
	// ErrNotFound.
	GetOpen(ctx context.Context, alarmID string) (*Alarm, error)

	// Transition moves the non-CLOSED row for alarmID into newState, stamping
	// the matching lifecycle timestamp the first time each state is entered.
	// It fails with ErrNotFound when no non-CLOSED row exists and with
	// ErrInvalidTransition when the current state is not a legal origin.
	Transition(ctx context.Context, alarmID, newState string, at time.Time) (*Alarm, error)

	// List returns alarms matching the filter, ordered by first_seen
	// descending, truncated to filter.Limit.
	List(ctx context.Context, filter Filter) ([]Alarm, error)

	// Statistics aggregates counts per state, per severity (non-CLOSED) and
	// the total active count.
	Statistics(ctx context.Context) (*Statistics, error)

	// ActiveCountsByDevice counts non-CLOSED alarms per device.
	ActiveCountsByDevice(ctx context.Context) (map[string]int, error)
}
