package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	alarmapp "unified-nms/internal/alarms/application"
	alarms "unified-nms/internal/alarms/domain"
	telemetry "unified-nms/internal/telemetry/domain"
)

// Handler provides alarm HTTP endpoints.
type Handler struct {
	engine *alarmapp.Engine
}

// NewHandler constructs a handler.
func NewHandler(engine *alarmapp.Engine) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("alarms handler: nil engine")
	}
	return &Handler{engine: engine}, nil
}

// ServeHTTP handles /api/v1/alarms and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alarms":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/alarms/stats":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStats(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/alarms/"):
		h.handleAction(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.engine.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Statistics(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alarms/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	action := parts[1]

	var (
		alarm *alarms.Alarm
		err   error
	)
	switch action {
	case "acknowledge":
		alarm, err = h.engine.Acknowledge(r.Context(), id)
	case "resolve":
		alarm, err = h.engine.Resolve(r.Context(), id)
	case "close":
		alarm, err = h.engine.Close(r.Context(), id)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		if errors.Is(err, alarms.ErrNotFound) {
			http.Error(w, "alarm not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, alarms.ErrInvalidTransition) {
			http.Error(w, "transition not allowed from current state", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alarm)
}

func parseFilter(r *http.Request) (alarms.Filter, error) {
	filter := alarms.Filter{}

	if state := r.URL.Query().Get("state"); state != "" {
		state = strings.ToUpper(state)
		if !alarms.ValidState(state) {
			return filter, errors.New("state must be one of OPEN, ACK, RESOLVED, CLOSED")
		}
		filter.State = state
	}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		severity = strings.ToUpper(severity)
		if severity != telemetry.SeverityWarning && severity != telemetry.SeverityCritical {
			return filter, errors.New("severity must be WARNING or CRITICAL")
		}
		filter.Severity = severity
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}
