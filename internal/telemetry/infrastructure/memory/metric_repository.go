package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	telemetry "unified-nms/internal/telemetry/domain"
)

// MetricRepository is an in-memory metric store for tests and storeless demo
// runs.
type MetricRepository struct {
	mu   sync.RWMutex
	rows []telemetry.NormalizedMetric
}

// NewMetricRepository constructs a repository.
func NewMetricRepository() *MetricRepository {
	return &MetricRepository{}
}

// AppendMetrics stores a batch of normalized readings.
func (r *MetricRepository) AppendMetrics(ctx context.Context, metrics []telemetry.NormalizedMetric) error {
	_ = ctx
	if r == nil {
		return errors.New("metric repo: nil repository")
	}
	for _, m := range metrics {
		if m.DeviceID == "" || m.Parameter == "" || m.Timestamp.IsZero() {
			return errors.New("metric repo: invalid metric")
		}
	}
	r.mu.Lock()
	r.rows = append(r.rows, metrics...)
	r.mu.Unlock()
	return nil
}

// QueryMetrics returns stored readings, newest-first.
func (r *MetricRepository) QueryMetrics(ctx context.Context, filter telemetry.MetricFilter) ([]telemetry.NormalizedMetric, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("metric repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]telemetry.NormalizedMetric, 0, len(r.rows))
	for _, m := range r.rows {
		if filter.DeviceID != "" && m.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Parameter != "" && m.Parameter != filter.Parameter {
			continue
		}
		result = append(result, m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeviceSummaries aggregates stored readings per device.
func (r *MetricRepository) DeviceSummaries(ctx context.Context) ([]telemetry.DeviceSummary, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("metric repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDevice := make(map[string]*telemetry.DeviceSummary)
	for _, m := range r.rows {
		summary, ok := byDevice[m.DeviceID]
		if !ok {
			summary = &telemetry.DeviceSummary{
				DeviceID:   m.DeviceID,
				DeviceType: m.DeviceType,
				Protocol:   m.Protocol,
				Location:   m.Location,
			}
			byDevice[m.DeviceID] = summary
		}
		summary.MetricCount++
		if m.Timestamp.After(summary.LastSeen) {
			summary.LastSeen = m.Timestamp
		}
	}

	result := make([]telemetry.DeviceSummary, 0, len(byDevice))
	for _, summary := range byDevice {
		result = append(result, *summary)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DeviceID < result[j].DeviceID
	})
	return result, nil
}
