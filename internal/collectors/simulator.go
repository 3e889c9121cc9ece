package collectors

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	telemetry "unified-nms/internal/telemetry/domain"
)

// SimulatorConfig configures an in-process reading generator for runs without
// reachable devices.
type SimulatorConfig struct {
	Devices      []DeviceInfo
	PollInterval time.Duration
}

// Simulator fabricates plausible readings per device, cycling through the
// canonical parameters. Values occasionally spike past typical thresholds so
// the alarm path gets exercised.
type Simulator struct {
	cfg    SimulatorConfig
	sink   Sink
	logger *log.Logger
	rand   *rand.Rand
	start  time.Time
}

// NewSimulator constructs a simulator.
func NewSimulator(cfg SimulatorConfig, sink Sink, logger *log.Logger) (*Simulator, error) {
	if len(cfg.Devices) == 0 {
		return nil, errors.New("simulator: no devices configured")
	}
	if sink == nil {
		return nil, errors.New("simulator: nil sink")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Simulator{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		start:  time.Now(),
	}, nil
}

// Name identifies the collector in logs and metrics.
func (s *Simulator) Name() string {
	return "simulator"
}

// Run generates batches until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	pollLoop(ctx, s.Name(), s.cfg.PollInterval, s.logger, s.sink, s.collect)
}

func (s *Simulator) collect(_ context.Context) ([]telemetry.RawMetricRecord, error) {
	timestamp := time.Now().UTC()
	var batch []telemetry.RawMetricRecord
	for _, device := range s.cfg.Devices {
		for parameter, value := range s.readings() {
			batch = append(batch, telemetry.RawMetricRecord{
				DeviceID:   device.DeviceID,
				DeviceType: device.DeviceType,
				Protocol:   device.Protocol,
				Location:   device.Location,
				Parameter:  parameter,
				Value:      value,
				Timestamp:  timestamp,
			})
		}
	}
	return batch, nil
}

func (s *Simulator) readings() map[string]any {
	return map[string]any{
		"cpu_usage":        int64(20 + s.rand.Intn(76)),
		"memory_usage":     int64(1024 + s.rand.Intn(7169)),
		"temp_celsius":     round2(25 + s.rand.Float64()*25 - 5),
		"humidity_percent": round2(50 + s.rand.Float64()*50 - 10),
		"uptime":           int64(time.Since(s.start).Seconds()),
	}
}

func round2(value float64) float64 {
	return float64(int64(value*100)) / 100
}
