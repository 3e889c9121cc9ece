package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	telemetry "unified-nms/internal/telemetry/domain"
)

// Device describes one managed device. The protocol decides which of the
// transport fields apply.
type Device struct {
	DeviceID   string `yaml:"device_id"`
	DeviceType string `yaml:"device_type"`
	Protocol   string `yaml:"protocol"`
	Location   string `yaml:"location"`

	// SNMP
	IP        string            `yaml:"ip"`
	Port      int               `yaml:"port"`
	Community string            `yaml:"community"`
	OIDs      map[string]string `yaml:"oids"`

	// RESTCONF
	BaseURL   string            `yaml:"base_url"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Endpoints map[string]string `yaml:"endpoints"`

	// MQTT
	Broker string   `yaml:"broker"`
	Topics []string `yaml:"topics"`
}

// AlarmSettings tunes the alarm engine.
type AlarmSettings struct {
	AutoCloseTimeoutSeconds    int    `yaml:"auto_close_timeout_seconds"`
	MaintenanceIntervalSeconds int    `yaml:"maintenance_interval_seconds"`
	WebhookURL                 string `yaml:"webhook_url"`
}

// CollectorSettings tunes poll cadence and the ingest queue.
type CollectorSettings struct {
	SNMPPollIntervalSeconds     int `yaml:"snmp_poll_interval_seconds"`
	RESTCONFPollIntervalSeconds int `yaml:"restconf_poll_interval_seconds"`
	MQTTQoS                     int `yaml:"mqtt_qos"`
	QueueSize                   int `yaml:"queue_size"`
}

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`
	Simulate    bool   `yaml:"simulate"`

	Devices        []Device                       `yaml:"devices"`
	ParameterNames map[string]string              `yaml:"parameter_names"`
	ParameterUnits map[string]string              `yaml:"parameter_units"`
	ThresholdTable map[string]telemetry.Threshold `yaml:"thresholds"`
	Alarms         AlarmSettings                  `yaml:"alarms"`
	Collectors     CollectorSettings              `yaml:"collectors"`
}

// Thresholds implements telemetry.ThresholdProvider.
func (c *Config) Thresholds() map[string]telemetry.Threshold {
	if c == nil {
		return nil
	}
	return c.ThresholdTable
}

// AutoCloseTimeout returns the configured auto-close window.
func (c *Config) AutoCloseTimeout() time.Duration {
	return time.Duration(c.Alarms.AutoCloseTimeoutSeconds) * time.Second
}

// MaintenanceInterval returns the maintenance cadence.
func (c *Config) MaintenanceInterval() time.Duration {
	return time.Duration(c.Alarms.MaintenanceIntervalSeconds) * time.Second
}

// SNMPPollInterval returns the SNMP poll cadence.
func (c *Config) SNMPPollInterval() time.Duration {
	return time.Duration(c.Collectors.SNMPPollIntervalSeconds) * time.Second
}

// RESTCONFPollInterval returns the RESTCONF poll cadence.
func (c *Config) RESTCONFPollInterval() time.Duration {
	return time.Duration(c.Collectors.RESTCONFPollIntervalSeconds) * time.Second
}

// Load builds the configuration from environment variables, then overlays the
// yaml file named by NMS_CONFIG when set.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    getenvDefault("NMS_HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("NMS_JWT_SECRET"),
		Simulate:    getenvBoolDefault("NMS_SIMULATE", false),
		Alarms: AlarmSettings{
			AutoCloseTimeoutSeconds:    getenvIntDefault("NMS_ALARM_AUTO_CLOSE_SECONDS", 300),
			MaintenanceIntervalSeconds: getenvIntDefault("NMS_ALARM_MAINTENANCE_SECONDS", 60),
			WebhookURL:                 os.Getenv("NMS_ALARM_WEBHOOK_URL"),
		},
		Collectors: CollectorSettings{
			SNMPPollIntervalSeconds:     getenvIntDefault("NMS_SNMP_POLL_SECONDS", 10),
			RESTCONFPollIntervalSeconds: getenvIntDefault("NMS_RESTCONF_POLL_SECONDS", 10),
			MQTTQoS:                     getenvIntDefault("NMS_MQTT_QOS", 1),
			QueueSize:                   getenvIntDefault("NMS_INGEST_QUEUE_SIZE", 256),
		},
	}

	if path := os.Getenv("NMS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.ParameterNames == nil {
		cfg.ParameterNames = telemetry.DefaultParameterNames()
	}
	if cfg.ParameterUnits == nil {
		cfg.ParameterUnits = telemetry.DefaultParameterUnits()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Alarms.AutoCloseTimeoutSeconds <= 0 {
		return errors.New("config: auto_close_timeout_seconds must be positive")
	}
	if c.Alarms.MaintenanceIntervalSeconds <= 0 {
		return errors.New("config: maintenance_interval_seconds must be positive")
	}
	seen := make(map[string]struct{}, len(c.Devices))
	for _, device := range c.Devices {
		if device.DeviceID == "" {
			return errors.New("config: device missing device_id")
		}
		if _, ok := seen[device.DeviceID]; ok {
			return fmt.Errorf("config: duplicate device_id %q", device.DeviceID)
		}
		seen[device.DeviceID] = struct{}{}
		switch device.Protocol {
		case "SNMP":
			if device.IP == "" || len(device.OIDs) == 0 {
				return fmt.Errorf("config: snmp device %q needs ip and oids", device.DeviceID)
			}
		case "RESTCONF":
			if device.BaseURL == "" || len(device.Endpoints) == 0 {
				return fmt.Errorf("config: restconf device %q needs base_url and endpoints", device.DeviceID)
			}
		case "MQTT":
			if device.Broker == "" || len(device.Topics) == 0 {
				return fmt.Errorf("config: mqtt device %q needs broker and topics", device.DeviceID)
			}
		default:
			return fmt.Errorf("config: device %q has unsupported protocol %q", device.DeviceID, device.Protocol)
		}
	}
	for parameter, threshold := range c.ThresholdTable {
		if threshold.Warning != nil && threshold.Critical != nil && *threshold.Critical < *threshold.Warning {
			return fmt.Errorf("config: threshold for %q has critical below warning", parameter)
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
