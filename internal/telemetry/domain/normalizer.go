package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// DefaultParameterNames maps protocol-native parameter names to canonical
// names. Unmapped names pass through verbatim.
func DefaultParameterNames() map[string]string {
	return map[string]string{
		// SNMP
		"cpu_usage":    "cpu_usage",
		"memory_usage": "memory_usage",
		"uptime":       "uptime",

		// RESTCONF
		"system_cpu_usage":   "cpu_usage",
		"system_memory_used": "memory_used",
		"system_temperature": "temp_celsius",
		"system_uptime":      "uptime",

		// MQTT sensor topics
		"temp1":     "temp_celsius",
		"humidity1": "humidity_percent",
		"pressure1": "pressure_kpa",
	}
}

// DefaultParameterUnits maps canonical parameter names to units.
func DefaultParameterUnits() map[string]string {
	return map[string]string{
		"cpu_usage":        "percent",
		"memory_usage":     "MB",
		"memory_used":      "MB",
		"temp_celsius":     "celsius",
		"humidity_percent": "percent",
		"pressure_kpa":     "kPa",
		"uptime":           "seconds",
		"tx_packets":       "count",
		"rx_packets":       "count",
	}
}

// Normalizer converts raw protocol readings into the canonical metric shape.
// It carries only the loaded name and unit tables; Normalize is deterministic
// and idempotent for already-canonical input.
type Normalizer struct {
	names map[string]string
	units map[string]string
	now   func() time.Time
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithNow overrides the ingestion-time source, for tests.
func WithNow(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNormalizer constructs a Normalizer. Nil tables fall back to the defaults.
func NewNormalizer(names, units map[string]string, opts ...NormalizerOption) *Normalizer {
	if names == nil {
		names = DefaultParameterNames()
	}
	if units == nil {
		units = DefaultParameterUnits()
	}
	normalizer := &Normalizer{
		names: names,
		units: units,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(normalizer)
	}
	return normalizer
}

// Normalize maps a raw record into the canonical metric shape. It never fails:
// uncoercible values are preserved unchanged.
func (n *Normalizer) Normalize(raw RawMetricRecord) NormalizedMetric {
	parameter := raw.Parameter
	if canonical, ok := n.names[parameter]; ok {
		parameter = canonical
	}
	timestamp := raw.Timestamp
	if timestamp.IsZero() {
		timestamp = n.now()
	}
	return NormalizedMetric{
		DeviceID:   raw.DeviceID,
		DeviceType: raw.DeviceType,
		Protocol:   raw.Protocol,
		Location:   raw.Location,
		Parameter:  parameter,
		Value:      coerceValue(raw.Value),
		Unit:       n.units[parameter],
		Timestamp:  timestamp,
	}
}

// Process normalizes each raw record in input order and evaluates it against
// the supplied thresholds. Both output slices preserve input order; the event
// slice may be shorter than the metric slice.
func (n *Normalizer) Process(raws []RawMetricRecord, thresholds map[string]Threshold) ([]NormalizedMetric, []Event) {
	metrics := make([]NormalizedMetric, 0, len(raws))
	var events []Event
	for _, raw := range raws {
		metric := n.Normalize(raw)
		metrics = append(metrics, metric)
		events = append(events, Evaluate(metric, thresholds)...)
	}
	return metrics, events
}

// coerceValue turns string values into int64 or float64 where possible by
// stripping everything except digits, decimal point and minus sign. Values
// that cannot be coerced are returned unchanged.
func coerceValue(value any) any {
	text, ok := value.(string)
	if !ok {
		return value
	}
	var cleaned strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			cleaned.WriteRune(r)
		}
	}
	candidate := cleaned.String()
	if candidate == "" {
		return value
	}
	if strings.Contains(candidate, ".") {
		parsed, err := strconv.ParseFloat(candidate, 64)
		if err != nil {
			return value
		}
		return parsed
	}
	parsed, err := strconv.ParseInt(candidate, 10, 64)
	if err != nil {
		return value
	}
	return parsed
}
