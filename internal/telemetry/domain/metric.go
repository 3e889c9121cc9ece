package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Severity levels for threshold events.
const (
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// EventTypeThresholdExceeded marks events produced by threshold evaluation.
const EventTypeThresholdExceeded = "threshold_exceeded"

// EventStateOpen is the initial state carried by every emitted event.
const EventStateOpen = "OPEN"

// RawMetricRecord is a reading as delivered by a protocol collector.
// Collectors normalize their native payloads to this shape; the core does no
// protocol-specific parsing.
type RawMetricRecord struct {
	DeviceID   string    `json:"device_id"`
	DeviceType string    `json:"device_type"`
	Protocol   string    `json:"protocol"`
	Location   string    `json:"location"`
	Parameter  string    `json:"parameter"`
	Value      any       `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// Validate checks the required identity fields.
func (r RawMetricRecord) Validate() error {
	if r.DeviceID == "" {
		return errors.New("telemetry: missing device_id")
	}
	if r.Parameter == "" {
		return errors.New("telemetry: missing parameter")
	}
	return nil
}

// NormalizedMetric is the canonical metric shape shared by all protocols.
// Value holds int64 or float64 after successful coercion, otherwise the
// original raw value.
type NormalizedMetric struct {
	DeviceID   string    `json:"device_id"`
	DeviceType string    `json:"device_type"`
	Protocol   string    `json:"protocol"`
	Location   string    `json:"location"`
	Parameter  string    `json:"parameter"`
	Value      any       `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event is produced when a metric value meets or exceeds a configured bound.
type Event struct {
	DeviceID   string    `json:"device_id"`
	DeviceType string    `json:"device_type"`
	Protocol   string    `json:"protocol"`
	Location   string    `json:"location"`
	Type       string    `json:"type"`
	Category   string    `json:"category"`
	Severity   string    `json:"severity"`
	State      string    `json:"state"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Threshold holds optional warning and critical bounds for one parameter.
type Threshold struct {
	Warning  *float64 `yaml:"warning" json:"warning,omitempty"`
	Critical *float64 `yaml:"critical" json:"critical,omitempty"`
}

// ThresholdProvider supplies the threshold mapping for an evaluation pass.
// The mapping is treated as immutable input for that pass.
type ThresholdProvider interface {
	Thresholds() map[string]Threshold
}

// NumericValue interprets a metric value as float64.
func NumericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// MetricFilter selects stored metrics.
type MetricFilter struct {
	DeviceID  string
	Parameter string
	Limit     int
}

// DeviceSummary aggregates stored metrics per device.
type DeviceSummary struct {
	DeviceID     string    `json:"device_id"`
	DeviceType   string    `json:"device_type"`
	Protocol     string    `json:"protocol"`
	Location     string    `json:"location"`
	LastSeen     time.Time `json:"last_seen"`
	MetricCount  int       `json:"metric_count"`
	ActiveAlarms int       `json:"active_alarms"`
}

// MetricRepository persists normalized metrics append-only.
type MetricRepository interface {
	AppendMetrics(ctx context.Context, metrics []NormalizedMetric) error
	QueryMetrics(ctx context.Context, filter MetricFilter) ([]NormalizedMetric, error)
	DeviceSummaries(ctx context.Context) ([]DeviceSummary, error)
}
