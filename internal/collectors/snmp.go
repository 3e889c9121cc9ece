package collectors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	telemetry "unified-nms/internal/telemetry/domain"
)

// SNMPConfig configures one polled SNMP device.
type SNMPConfig struct {
	Device       DeviceInfo
	Target       string
	Port         uint16
	Community    string
	OIDs         map[string]string
	PollInterval time.Duration
}

// SNMPCollector polls a device over SNMP v2c. Each cycle issues one GET for
// all configured OIDs.
type SNMPCollector struct {
	cfg    SNMPConfig
	sink   Sink
	logger *log.Logger
	now    func() time.Time

	// sorted for a stable OID order on the wire
	params []string
	oids   []string
}

// NewSNMPCollector constructs a collector.
func NewSNMPCollector(cfg SNMPConfig, sink Sink, logger *log.Logger) (*SNMPCollector, error) {
	if cfg.Device.DeviceID == "" {
		return nil, errors.New("snmp collector: missing device id")
	}
	if cfg.Target == "" {
		return nil, errors.New("snmp collector: missing target")
	}
	if len(cfg.OIDs) == 0 {
		return nil, errors.New("snmp collector: no oids configured")
	}
	if sink == nil {
		return nil, errors.New("snmp collector: nil sink")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Community == "" {
		cfg.Community = "public"
	}

	params := make([]string, 0, len(cfg.OIDs))
	for param := range cfg.OIDs {
		params = append(params, param)
	}
	sort.Strings(params)
	oids := make([]string, 0, len(params))
	for _, param := range params {
		oids = append(oids, cfg.OIDs[param])
	}

	return &SNMPCollector{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		params: params,
		oids:   oids,
	}, nil
}

// Name identifies the collector in logs and metrics.
func (c *SNMPCollector) Name() string {
	return "snmp:" + c.cfg.Device.DeviceID
}

// Run polls until ctx is done.
func (c *SNMPCollector) Run(ctx context.Context) {
	pollLoop(ctx, c.Name(), c.cfg.PollInterval, c.logger, c.sink, c.collect)
}

func (c *SNMPCollector) collect(ctx context.Context) ([]telemetry.RawMetricRecord, error) {
	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    c.cfg.Target,
		Port:      c.cfg.Port,
		Community: c.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   2 * time.Second,
		Retries:   1,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.cfg.Target, err)
	}
	defer client.Conn.Close()

	result, err := client.Get(c.oids)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.cfg.Target, err)
	}

	timestamp := c.now()
	batch := make([]telemetry.RawMetricRecord, 0, len(result.Variables))
	for _, variable := range result.Variables {
		param, ok := c.paramForOID(variable.Name)
		if !ok {
			continue
		}
		if variable.Type == gosnmp.NoSuchObject || variable.Type == gosnmp.NoSuchInstance {
			c.logger.Printf("%s: oid %s not available", c.Name(), variable.Name)
			continue
		}
		batch = append(batch, telemetry.RawMetricRecord{
			DeviceID:   c.cfg.Device.DeviceID,
			DeviceType: c.cfg.Device.DeviceType,
			Protocol:   c.cfg.Device.Protocol,
			Location:   c.cfg.Device.Location,
			Parameter:  param,
			Value:      snmpValue(variable),
			Timestamp:  timestamp,
		})
	}
	return batch, nil
}

func (c *SNMPCollector) paramForOID(name string) (string, bool) {
	name = strings.TrimPrefix(name, ".")
	for i, oid := range c.oids {
		if strings.TrimPrefix(oid, ".") == name {
			return c.params[i], true
		}
	}
	return "", false
}

func snmpValue(variable gosnmp.SnmpPDU) any {
	switch value := variable.Value.(type) {
	case []byte:
		return string(value)
	default:
		return value
	}
}
