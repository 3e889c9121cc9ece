package collectors

import (
	"context"
	"log"
	"time"

	"unified-nms/internal/observability/metrics"
	telemetry "unified-nms/internal/telemetry/domain"
)

// Sink accepts raw metric batches from collectors. The ingest pipeline
// implements this.
type Sink interface {
	Submit(batch []telemetry.RawMetricRecord) error
}

// Collector produces raw readings for one device until its context is done.
type Collector interface {
	Name() string
	Run(ctx context.Context)
}

// DeviceInfo carries the identity fields stamped onto every raw record a
// collector emits.
type DeviceInfo struct {
	DeviceID   string
	DeviceType string
	Protocol   string
	Location   string
}

// pollLoop drives interval-based collectors. collect returns one batch per
// cycle; empty batches are skipped.
func pollLoop(ctx context.Context, name string, interval time.Duration, logger *log.Logger, sink Sink, collect func(ctx context.Context) ([]telemetry.RawMetricRecord, error)) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		batch, err := collect(ctx)
		if err != nil {
			metrics.IncCollectorPoll(name, metrics.ResultError)
			logger.Printf("%s: poll failed: %v", name, err)
		} else {
			metrics.IncCollectorPoll(name, metrics.ResultSuccess)
			if len(batch) > 0 {
				if err := sink.Submit(batch); err != nil {
					logger.Printf("%s: submit failed: %v", name, err)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
