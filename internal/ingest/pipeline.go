package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alarmapp "unified-nms/internal/alarms/application"
	"unified-nms/internal/observability/metrics"
	telemetry "unified-nms/internal/telemetry/domain"
)

// ErrQueueFull is returned by Submit when the ingest queue is saturated.
// Callers drop the batch; readings are periodic and the next poll supersedes
// the lost one.
var ErrQueueFull = errors.New("ingest: queue full")

const defaultQueueSize = 256

// Pipeline runs the normalize-evaluate-store path. Collectors submit raw
// batches into a bounded queue; a single consumer goroutine drains it, which
// serializes writes without holding collectors up.
type Pipeline struct {
	normalizer *telemetry.Normalizer
	thresholds telemetry.ThresholdProvider
	store      telemetry.MetricRepository
	engine     *alarmapp.Engine
	logger     *log.Logger
	queue      chan []telemetry.RawMetricRecord

	mu     sync.RWMutex
	latest map[string]telemetry.NormalizedMetric
}

// PipelineOption customizes the pipeline.
type PipelineOption func(*Pipeline)

// WithQueueSize overrides the queue capacity.
func WithQueueSize(size int) PipelineOption {
	return func(p *Pipeline) {
		if size > 0 {
			p.queue = make(chan []telemetry.RawMetricRecord, size)
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline constructs a pipeline.
func NewPipeline(normalizer *telemetry.Normalizer, thresholds telemetry.ThresholdProvider, store telemetry.MetricRepository, engine *alarmapp.Engine, opts ...PipelineOption) (*Pipeline, error) {
	if normalizer == nil {
		return nil, errors.New("ingest: nil normalizer")
	}
	if thresholds == nil {
		return nil, errors.New("ingest: nil threshold provider")
	}
	if store == nil {
		return nil, errors.New("ingest: nil metric store")
	}
	if engine == nil {
		return nil, errors.New("ingest: nil alarm engine")
	}
	pipeline := &Pipeline{
		normalizer: normalizer,
		thresholds: thresholds,
		store:      store,
		engine:     engine,
		logger:     log.Default(),
		queue:      make(chan []telemetry.RawMetricRecord, defaultQueueSize),
		latest:     make(map[string]telemetry.NormalizedMetric),
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline, nil
}

// Submit enqueues a raw batch without blocking.
func (p *Pipeline) Submit(batch []telemetry.RawMetricRecord) error {
	if p == nil {
		return errors.New("ingest: nil pipeline")
	}
	if len(batch) == 0 {
		return nil
	}
	select {
	case p.queue <- batch:
		metrics.SetPipelineDepth(len(p.queue))
		return nil
	default:
		metrics.IncIngestError("queue_full")
		metrics.ObserveIngest(metrics.ResultDropped, 0)
		return ErrQueueFull
	}
}

// Start drains the queue until ctx is done.
func (p *Pipeline) Start(ctx context.Context) {
	if p == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-p.queue:
			metrics.SetPipelineDepth(len(p.queue))
			p.processBatch(ctx, batch)
		}
	}
}

// Snapshot returns the latest reading per device and parameter, for the alarm
// maintenance pass.
func (p *Pipeline) Snapshot() []telemetry.NormalizedMetric {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	snapshot := make([]telemetry.NormalizedMetric, 0, len(p.latest))
	for _, metric := range p.latest {
		snapshot = append(snapshot, metric)
	}
	return snapshot
}

func (p *Pipeline) processBatch(ctx context.Context, batch []telemetry.RawMetricRecord) {
	start := time.Now()

	valid := batch[:0]
	for _, raw := range batch {
		if err := raw.Validate(); err != nil {
			metrics.IncIngestError("invalid_record")
			p.logger.Printf("ingest: dropping record: %v", err)
			continue
		}
		valid = append(valid, raw)
	}

	normalized, events := p.normalizer.Process(valid, p.thresholds.Thresholds())

	result := metrics.ResultSuccess
	if err := p.store.AppendMetrics(ctx, normalized); err != nil {
		metrics.IncIngestError("store")
		p.logger.Printf("ingest: store batch failed: %v", err)
		result = metrics.ResultError
	}

	p.mu.Lock()
	for _, metric := range normalized {
		p.latest[metric.DeviceID+"|"+metric.Parameter] = metric
	}
	p.mu.Unlock()

	for _, event := range events {
		if err := p.engine.ProcessEvent(ctx, event); err != nil {
			metrics.IncIngestError("alarm")
			p.logger.Printf("ingest: alarm event failed: device=%s category=%s err=%v", event.DeviceID, event.Category, err)
			result = metrics.ResultError
		}
	}

	metrics.ObserveIngest(result, time.Since(start))
}
