package memory

import (
	"context"
	"testing"
	"time"

	telemetry "unified-nms/internal/telemetry/domain"
)

func storedMetric(deviceID, parameter string, value any, at time.Time) telemetry.NormalizedMetric {
	return telemetry.NormalizedMetric{
		DeviceID:   deviceID,
		DeviceType: "switch",
		Protocol:   "snmp",
		Location:   "dc1",
		Parameter:  parameter,
		Value:      value,
		Unit:       "percent",
		Timestamp:  at,
	}
}

func TestQueryMetrics_FiltersAndOrdering(t *testing.T) {
	repo := NewMetricRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	batch := []telemetry.NormalizedMetric{
		storedMetric("sw1", "cpu_usage", int64(10), base),
		storedMetric("sw1", "cpu_usage", int64(20), base.Add(time.Minute)),
		storedMetric("sw1", "memory_usage", int64(30), base.Add(2*time.Minute)),
		storedMetric("sw2", "cpu_usage", int64(40), base.Add(3*time.Minute)),
	}
	if err := repo.AppendMetrics(ctx, batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := repo.QueryMetrics(ctx, telemetry.MetricFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(all))
	}
	if all[0].DeviceID != "sw2" {
		t.Fatalf("expected newest-first ordering, got %+v", all[0])
	}

	filtered, err := repo.QueryMetrics(ctx, telemetry.MetricFilter{DeviceID: "sw1", Parameter: "cpu_usage"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(filtered))
	}
	if value, ok := filtered[0].Value.(int64); !ok || value != 20 {
		t.Fatalf("expected newest value 20, got %v", filtered[0].Value)
	}

	limited, err := repo.QueryMetrics(ctx, telemetry.MetricFilter{Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}

func TestAppendMetrics_RejectsInvalid(t *testing.T) {
	repo := NewMetricRepository()
	ctx := context.Background()

	invalid := []telemetry.NormalizedMetric{
		storedMetric("", "cpu_usage", int64(10), time.Now().UTC()),
	}
	if err := repo.AppendMetrics(ctx, invalid); err == nil {
		t.Fatal("expected error for missing device_id")
	}
}

func TestDeviceSummaries(t *testing.T) {
	repo := NewMetricRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	batch := []telemetry.NormalizedMetric{
		storedMetric("sw1", "cpu_usage", int64(10), base),
		storedMetric("sw1", "memory_usage", int64(20), base.Add(time.Minute)),
		storedMetric("sw2", "cpu_usage", int64(30), base.Add(2*time.Minute)),
	}
	if err := repo.AppendMetrics(ctx, batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	summaries, err := repo.DeviceSummaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(summaries))
	}
	if summaries[0].DeviceID != "sw1" || summaries[0].MetricCount != 2 {
		t.Fatalf("unexpected first summary: %+v", summaries[0])
	}
	if !summaries[0].LastSeen.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected last_seen %v, got %v", base.Add(time.Minute), summaries[0].LastSeen)
	}
	if summaries[1].DeviceID != "sw2" || summaries[1].MetricCount != 1 {
		t.Fatalf("unexpected second summary: %+v", summaries[1])
	}
}
