package telemetry

import (
	"testing"
	"time"
)

func thresholdOf(warning, critical float64) Threshold {
	return Threshold{Warning: &warning, Critical: &critical}
}

func TestEvaluate_NoThresholdConfigured(t *testing.T) {
	metric := NormalizedMetric{DeviceID: "d1", Parameter: "uptime", Value: int64(12345), Timestamp: time.Now()}
	events := Evaluate(metric, map[string]Threshold{"cpu_usage": thresholdOf(70, 90)})
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestEvaluate_NonNumericValueSkipped(t *testing.T) {
	metric := NormalizedMetric{DeviceID: "d1", Parameter: "cpu_usage", Value: "n/a", Timestamp: time.Now()}
	events := Evaluate(metric, map[string]Threshold{"cpu_usage": thresholdOf(70, 90)})
	if len(events) != 0 {
		t.Fatalf("expected no events for non-numeric value, got %d", len(events))
	}
}

func TestEvaluate_CriticalWinsTieBreak(t *testing.T) {
	metric := NormalizedMetric{DeviceID: "d1", Parameter: "cpu_usage", Value: int64(97), Unit: "percent", Timestamp: time.Now()}
	events := Evaluate(metric, map[string]Threshold{"cpu_usage": thresholdOf(70, 90)})
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", events[0].Severity)
	}
}

func TestEvaluate_WarningOnly(t *testing.T) {
	metric := NormalizedMetric{DeviceID: "d1", Parameter: "cpu_usage", Value: 75.0, Timestamp: time.Now()}
	events := Evaluate(metric, map[string]Threshold{"cpu_usage": thresholdOf(70, 90)})
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	event := events[0]
	if event.Severity != SeverityWarning {
		t.Fatalf("expected WARNING, got %s", event.Severity)
	}
	if event.Type != EventTypeThresholdExceeded {
		t.Fatalf("expected %s, got %s", EventTypeThresholdExceeded, event.Type)
	}
	if event.State != EventStateOpen {
		t.Fatalf("expected OPEN, got %s", event.State)
	}
	if event.Category != "cpu_usage" {
		t.Fatalf("expected category cpu_usage, got %s", event.Category)
	}
}

func TestEvaluate_BoundIsInclusive(t *testing.T) {
	thresholds := map[string]Threshold{"cpu_usage": thresholdOf(70, 90)}
	at := func(v float64) []Event {
		return Evaluate(NormalizedMetric{DeviceID: "d1", Parameter: "cpu_usage", Value: v, Timestamp: time.Now()}, thresholds)
	}
	if events := at(69.9); len(events) != 0 {
		t.Fatalf("expected no event below warning, got %d", len(events))
	}
	if events := at(70); len(events) != 1 || events[0].Severity != SeverityWarning {
		t.Fatalf("expected WARNING at the warning bound, got %+v", events)
	}
	if events := at(90); len(events) != 1 || events[0].Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL at the critical bound, got %+v", events)
	}
}

func TestEvaluate_CriticalOnlyThreshold(t *testing.T) {
	critical := 90.0
	thresholds := map[string]Threshold{"temp_celsius": {Critical: &critical}}
	events := Evaluate(NormalizedMetric{DeviceID: "d1", Parameter: "temp_celsius", Value: 80.0, Timestamp: time.Now()}, thresholds)
	if len(events) != 0 {
		t.Fatalf("expected no event without warning bound, got %d", len(events))
	}
	events = Evaluate(NormalizedMetric{DeviceID: "d1", Parameter: "temp_celsius", Value: 95.0, Timestamp: time.Now()}, thresholds)
	if len(events) != 1 || events[0].Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL, got %+v", events)
	}
}
