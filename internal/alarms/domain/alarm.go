package alarms

import (
	"fmt"
	"time"
)

// Alarm lifecycle states. CLOSED is terminal per row; a later event with the
// same identity key opens a fresh row.
const (
	StateOpen     = "OPEN"
	StateAck      = "ACK"
	StateResolved = "RESOLVED"
	StateClosed   = "CLOSED"
)

// Alarm is the persisted, deduplicated lifecycle entity. AlarmID is the
// deterministic key (device_id, category, type), shared by every generation of
// the same condition; at most one non-CLOSED row exists per key at any time.
type Alarm struct {
	AlarmID         string    `json:"alarm_id"`
	DeviceID        string    `json:"device_id"`
	DeviceType      string    `json:"device_type,omitempty"`
	Protocol        string    `json:"protocol,omitempty"`
	Location        string    `json:"location,omitempty"`
	Type            string    `json:"type"`
	Category        string    `json:"category"`
	Severity        string    `json:"severity"`
	State           string    `json:"state"`
	Message         string    `json:"message,omitempty"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	AcknowledgedAt  time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at,omitempty"`
	ClosedAt        time.Time `json:"closed_at,omitempty"`
	OccurrenceCount int       `json:"occurrence_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BuildAlarmID derives the deduplication key for an event.
func BuildAlarmID(deviceID, category, eventType string) string {
	return fmt.Sprintf("%s_%s_%s", deviceID, category, eventType)
}

// IsActive reports whether a state counts as active (not resolved or closed).
func IsActive(state string) bool {
	return state == StateOpen || state == StateAck
}

// ValidState reports whether value is a known lifecycle state.
func ValidState(value string) bool {
	switch value {
	case StateOpen, StateAck, StateResolved, StateClosed:
		return true
	default:
		return false
	}
}

// allowedFrom lists the states a transition may start from.
func allowedFrom(newState string) []string {
	switch newState {
	case StateAck:
		return []string{StateOpen, StateAck}
	case StateResolved:
		return []string{StateOpen, StateAck, StateResolved}
	case StateClosed:
		return []string{StateOpen, StateAck, StateResolved}
	default:
		return nil
	}
}

// TransitionAllowedFrom exposes the state machine edges for repositories.
func TransitionAllowedFrom(newState string) []string {
	return allowedFrom(newState)
}
