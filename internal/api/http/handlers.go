package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	alarms "unified-nms/internal/alarms/domain"
	telemetry "unified-nms/internal/telemetry/domain"
)

// MetricsHandler serves stored metric queries.
type MetricsHandler struct {
	store telemetry.MetricRepository
}

// NewMetricsHandler constructs a MetricsHandler.
func NewMetricsHandler(store telemetry.MetricRepository) (*MetricsHandler, error) {
	if store == nil {
		return nil, errors.New("metrics handler: nil store")
	}
	return &MetricsHandler{store: store}, nil
}

// ServeHTTP handles GET /api/v1/metrics.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter := telemetry.MetricFilter{
		DeviceID:  r.URL.Query().Get("device_id"),
		Parameter: r.URL.Query().Get("parameter"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	list, err := h.store.QueryMetrics(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// DevicesHandler serves per-device summaries enriched with active alarm
// counts.
type DevicesHandler struct {
	store  telemetry.MetricRepository
	alarms alarms.Repository
}

// NewDevicesHandler constructs a DevicesHandler.
func NewDevicesHandler(store telemetry.MetricRepository, alarmRepo alarms.Repository) (*DevicesHandler, error) {
	if store == nil {
		return nil, errors.New("devices handler: nil store")
	}
	if alarmRepo == nil {
		return nil, errors.New("devices handler: nil alarm repository")
	}
	return &DevicesHandler{store: store, alarms: alarmRepo}, nil
}

// ServeHTTP handles GET /api/v1/devices.
func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summaries, err := h.store.DeviceSummaries(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	counts, err := h.alarms.ActiveCountsByDevice(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for i := range summaries {
		summaries[i].ActiveAlarms = counts[summaries[i].DeviceID]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaries)
}
