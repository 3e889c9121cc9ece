package application

import (
	"context"
	"log"
	"time"

	telemetry "unified-nms/internal/telemetry/domain"
)

// MetricSource supplies the latest observed metrics for auto-resolve.
type MetricSource interface {
	Snapshot() []telemetry.NormalizedMetric
}

// Scheduler invokes the engine's maintenance pass on a fixed period. It owns
// no state of its own.
type Scheduler struct {
	engine   *Engine
	source   MetricSource
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(engine *Engine, source MetricSource, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{engine: engine, source: source, interval: interval, logger: logger}
}

// Start begins the maintenance loop and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var snapshot []telemetry.NormalizedMetric
			if s.source != nil {
				snapshot = s.source.Snapshot()
			}
			if err := s.engine.RunMaintenance(ctx, snapshot); err != nil {
				s.logger.Printf("alarm maintenance error: %v", err)
			}
		}
	}
}
