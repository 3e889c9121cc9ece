package telemetry

import "fmt"

// Evaluate compares one canonical metric against the configured thresholds and
// returns at most one event. The critical bound is checked first; when it is
// met no warning event is emitted for the same evaluation. Non-numeric values
// never trigger events.
func Evaluate(metric NormalizedMetric, thresholds map[string]Threshold) []Event {
	threshold, ok := thresholds[metric.Parameter]
	if !ok {
		return nil
	}
	value, ok := NumericValue(metric.Value)
	if !ok {
		return nil
	}
	if threshold.Critical != nil && value >= *threshold.Critical {
		return []Event{newThresholdEvent(metric, SeverityCritical, *threshold.Critical)}
	}
	if threshold.Warning != nil && value >= *threshold.Warning {
		return []Event{newThresholdEvent(metric, SeverityWarning, *threshold.Warning)}
	}
	return nil
}

func newThresholdEvent(metric NormalizedMetric, severity string, bound float64) Event {
	label := "warning"
	if severity == SeverityCritical {
		label = "critical"
	}
	return Event{
		DeviceID:   metric.DeviceID,
		DeviceType: metric.DeviceType,
		Protocol:   metric.Protocol,
		Location:   metric.Location,
		Type:       EventTypeThresholdExceeded,
		Category:   metric.Parameter,
		Severity:   severity,
		State:      EventStateOpen,
		Message:    fmt.Sprintf("%s exceeded %s threshold: %v %s >= %g", metric.Parameter, label, metric.Value, metric.Unit, bound),
		Timestamp:  metric.Timestamp,
	}
}
