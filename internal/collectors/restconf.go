package collectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	telemetry "unified-nms/internal/telemetry/domain"
)

// RESTCONFConfig configures one polled RESTCONF device.
type RESTCONFConfig struct {
	Device       DeviceInfo
	BaseURL      string
	Username     string
	Password     string
	Endpoints    map[string]string
	PollInterval time.Duration
}

// RESTCONFCollector polls a device's RESTCONF API. The system endpoint yields
// one record per scalar field; the interfaces endpoint yields per-interface
// counters.
type RESTCONFCollector struct {
	cfg    RESTCONFConfig
	sink   Sink
	client *http.Client
	logger *log.Logger
	now    func() time.Time
}

// NewRESTCONFCollector constructs a collector.
func NewRESTCONFCollector(cfg RESTCONFConfig, sink Sink, logger *log.Logger) (*RESTCONFCollector, error) {
	if cfg.Device.DeviceID == "" {
		return nil, errors.New("restconf collector: missing device id")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("restconf collector: missing base url")
	}
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("restconf collector: no endpoints configured")
	}
	if sink == nil {
		return nil, errors.New("restconf collector: nil sink")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RESTCONFCollector{
		cfg:    cfg,
		sink:   sink,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name identifies the collector in logs and metrics.
func (c *RESTCONFCollector) Name() string {
	return "restconf:" + c.cfg.Device.DeviceID
}

// Run polls until ctx is done.
func (c *RESTCONFCollector) Run(ctx context.Context) {
	pollLoop(ctx, c.Name(), c.cfg.PollInterval, c.logger, c.sink, c.collect)
}

func (c *RESTCONFCollector) collect(ctx context.Context) ([]telemetry.RawMetricRecord, error) {
	timestamp := c.now()
	var batch []telemetry.RawMetricRecord

	if endpoint, ok := c.cfg.Endpoints["system"]; ok {
		system, err := c.getJSON(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		for param, value := range system {
			switch value.(type) {
			case string, float64, bool:
			default:
				continue
			}
			batch = append(batch, c.record("system_"+param, value, timestamp))
		}
	}

	if endpoint, ok := c.cfg.Endpoints["interfaces"]; ok {
		payload, err := c.getJSON(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		interfaces, _ := payload["interface"].([]any)
		for _, entry := range interfaces {
			iface, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := iface["name"].(string)
			if name == "" {
				name = "unknown"
			}
			for _, param := range []string{"status", "admin_status", "tx_packets", "rx_packets"} {
				value, ok := iface[param]
				if !ok {
					continue
				}
				batch = append(batch, c.record(fmt.Sprintf("interface_%s_%s", name, param), value, timestamp))
			}
		}
	}

	return batch, nil
}

func (c *RESTCONFCollector) record(parameter string, value any, at time.Time) telemetry.RawMetricRecord {
	return telemetry.RawMetricRecord{
		DeviceID:   c.cfg.Device.DeviceID,
		DeviceType: c.cfg.Device.DeviceType,
		Protocol:   c.cfg.Device.Protocol,
		Location:   c.cfg.Device.Location,
		Parameter:  parameter,
		Value:      value,
		Timestamp:  at,
	}
}

func (c *RESTCONFCollector) getJSON(ctx context.Context, endpoint string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("restconf collector: %s returned %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("restconf collector: decode %s: %w", endpoint, err)
	}
	return payload, nil
}
