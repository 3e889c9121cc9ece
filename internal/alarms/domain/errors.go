package alarms

import "errors"

// ErrNotFound indicates no non-CLOSED alarm exists for the requested id.
var ErrNotFound = errors.New("alarm: not found")

// ErrInvalidTransition indicates the requested state change is not an edge of
// the lifecycle state machine.
var ErrInvalidTransition = errors.New("alarm: invalid transition")
