package collectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"unified-nms/internal/observability/metrics"
	telemetry "unified-nms/internal/telemetry/domain"
)

// MQTTConfig configures one subscribed MQTT device.
type MQTTConfig struct {
	Device DeviceInfo
	Broker string
	Port   int
	Topics []string
	QoS    byte
}

type mqttPayload struct {
	Value     any    `json:"value"`
	Unit      string `json:"unit"`
	Timestamp string `json:"timestamp"`
}

// MQTTCollector subscribes to sensor topics and forwards each message as a
// single-record batch. The parameter name is the last topic segment.
type MQTTCollector struct {
	cfg    MQTTConfig
	sink   Sink
	logger *log.Logger
	now    func() time.Time
}

// NewMQTTCollector constructs a collector.
func NewMQTTCollector(cfg MQTTConfig, sink Sink, logger *log.Logger) (*MQTTCollector, error) {
	if cfg.Device.DeviceID == "" {
		return nil, errors.New("mqtt collector: missing device id")
	}
	if cfg.Broker == "" {
		return nil, errors.New("mqtt collector: missing broker")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("mqtt collector: no topics configured")
	}
	if sink == nil {
		return nil, errors.New("mqtt collector: nil sink")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	return &MQTTCollector{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name identifies the collector in logs and metrics.
func (c *MQTTCollector) Name() string {
	return "mqtt:" + c.cfg.Device.DeviceID
}

// Run connects to the broker and blocks until ctx is done.
func (c *MQTTCollector) Run(ctx context.Context) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)).
		SetClientID("collector_" + c.cfg.Device.DeviceID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.logger.Printf("%s: connected to %s:%d", c.Name(), c.cfg.Broker, c.cfg.Port)
		for _, topic := range c.cfg.Topics {
			if token := client.Subscribe(topic, c.cfg.QoS, c.handleMessage); token.Wait() && token.Error() != nil {
				c.logger.Printf("%s: subscribe %s failed: %v", c.Name(), topic, token.Error())
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Printf("%s: connection lost: %v", c.Name(), err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		c.logger.Printf("%s: connect failed: %v", c.Name(), token.Error())
		metrics.IncCollectorPoll(c.Name(), metrics.ResultError)
		return
	}

	<-ctx.Done()
	client.Disconnect(250)
}

func (c *MQTTCollector) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var payload mqttPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		metrics.IncCollectorPoll(c.Name(), metrics.ResultError)
		c.logger.Printf("%s: invalid payload on %s: %v", c.Name(), msg.Topic(), err)
		return
	}

	segments := strings.Split(msg.Topic(), "/")
	parameter := segments[len(segments)-1]

	timestamp := c.now()
	if payload.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
			timestamp = parsed.UTC()
		}
	}

	record := telemetry.RawMetricRecord{
		DeviceID:   c.cfg.Device.DeviceID,
		DeviceType: c.cfg.Device.DeviceType,
		Protocol:   c.cfg.Device.Protocol,
		Location:   c.cfg.Device.Location,
		Parameter:  parameter,
		Value:      payload.Value,
		Unit:       payload.Unit,
		Timestamp:  timestamp,
	}
	if err := c.sink.Submit([]telemetry.RawMetricRecord{record}); err != nil {
		c.logger.Printf("%s: submit failed: %v", c.Name(), err)
		return
	}
	metrics.IncCollectorPoll(c.Name(), metrics.ResultSuccess)
}
