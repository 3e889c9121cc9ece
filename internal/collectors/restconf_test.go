package collectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	telemetry "unified-nms/internal/telemetry/domain"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]telemetry.RawMetricRecord
}

func (s *captureSink) Submit(batch []telemetry.RawMetricRecord) error {
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	return nil
}

func restconfDevice() DeviceInfo {
	return DeviceInfo{
		DeviceID:   "router1",
		DeviceType: "router",
		Protocol:   "RESTCONF",
		Location:   "dc1",
	}
}

func TestRESTCONFCollect_SystemAndInterfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/restconf/data/system":
			_, _ = w.Write([]byte(`{"cpu_usage": 42.5, "uptime": 12345, "hostname": "router1", "tags": ["a"]}`))
		case "/restconf/data/interfaces":
			_, _ = w.Write([]byte(`{"interface": [{"name": "eth0", "status": "up", "tx_packets": 100, "rx_packets": 200}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	sink := &captureSink{}
	collector, err := NewRESTCONFCollector(RESTCONFConfig{
		Device:   restconfDevice(),
		BaseURL:  server.URL,
		Username: "admin",
		Password: "secret",
		Endpoints: map[string]string{
			"system":     "/restconf/data/system",
			"interfaces": "/restconf/data/interfaces",
		},
	}, sink, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	batch, err := collector.collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	byParam := make(map[string]telemetry.RawMetricRecord, len(batch))
	for _, record := range batch {
		byParam[record.Parameter] = record
	}
	for _, param := range []string{"system_cpu_usage", "system_uptime", "system_hostname",
		"interface_eth0_status", "interface_eth0_tx_packets", "interface_eth0_rx_packets"} {
		if _, ok := byParam[param]; !ok {
			t.Fatalf("expected parameter %s in batch: %+v", param, byParam)
		}
	}
	// Non-scalar system fields are skipped.
	if _, ok := byParam["system_tags"]; ok {
		t.Fatal("expected list field to be skipped")
	}
	if byParam["system_cpu_usage"].DeviceID != "router1" || byParam["system_cpu_usage"].Protocol != "RESTCONF" {
		t.Fatalf("identity fields not stamped: %+v", byParam["system_cpu_usage"])
	}
}

func TestRESTCONFCollect_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	collector, err := NewRESTCONFCollector(RESTCONFConfig{
		Device:    restconfDevice(),
		BaseURL:   server.URL,
		Endpoints: map[string]string{"system": "/restconf/data/system"},
	}, &captureSink{}, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	if _, err := collector.collect(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestSimulatorCollect(t *testing.T) {
	sink := &captureSink{}
	simulator, err := NewSimulator(SimulatorConfig{
		Devices: []DeviceInfo{
			{DeviceID: "sim1", DeviceType: "switch", Protocol: "SIM", Location: "lab"},
			{DeviceID: "sim2", DeviceType: "sensor", Protocol: "SIM", Location: "lab"},
		},
	}, sink, nil)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}

	batch, err := simulator.collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(batch) != 10 {
		t.Fatalf("expected 5 parameters for 2 devices, got %d records", len(batch))
	}
	for _, record := range batch {
		if err := record.Validate(); err != nil {
			t.Fatalf("invalid record %+v: %v", record, err)
		}
		if record.Timestamp.IsZero() {
			t.Fatalf("missing timestamp: %+v", record)
		}
	}
}

func TestSNMPParamForOID(t *testing.T) {
	collector, err := NewSNMPCollector(SNMPConfig{
		Device:    DeviceInfo{DeviceID: "sw1", Protocol: "SNMP"},
		Target:    "127.0.0.1",
		Community: "public",
		OIDs: map[string]string{
			"cpu_usage":    "1.3.6.1.4.1.2021.11.9.0",
			"memory_usage": "1.3.6.1.4.1.2021.4.6.0",
		},
	}, &captureSink{}, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	param, ok := collector.paramForOID(".1.3.6.1.4.1.2021.11.9.0")
	if !ok || param != "cpu_usage" {
		t.Fatalf("expected cpu_usage, got %q ok=%v", param, ok)
	}
	if _, ok := collector.paramForOID(".1.2.3.4"); ok {
		t.Fatal("expected unknown oid to miss")
	}
}
