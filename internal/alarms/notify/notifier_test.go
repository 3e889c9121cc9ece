package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	alarmapp "unified-nms/internal/alarms/application"
	alarms "unified-nms/internal/alarms/domain"
)

func sampleEvent(eventType string) alarmapp.AlarmEvent {
	return alarmapp.AlarmEvent{
		Type: eventType,
		Alarm: alarms.Alarm{
			AlarmID:  "sw1_cpu_usage_threshold_exceeded",
			DeviceID: "sw1",
			Category: "cpu_usage",
			Severity: "WARNING",
			State:    alarms.StateOpen,
		},
	}
}

func TestWebhookNotifier_PostsEventJSON(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies [][]byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	notifier.Notify(context.Background(), sampleEvent(alarmapp.LifecycleOpened))

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected one delivery, got %d", len(bodies))
	}
	var got alarmapp.AlarmEvent
	if err := json.Unmarshal(bodies[0], &got); err != nil {
		t.Fatalf("unmarshal delivery: %v", err)
	}
	if got.Type != alarmapp.LifecycleOpened || got.Alarm.AlarmID != "sw1_cpu_usage_threshold_exceeded" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
}

func TestWebhookNotifier_EventFilter(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL,
		WithEventFilter(alarmapp.LifecycleOpened, alarmapp.LifecycleClosed))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	ctx := context.Background()
	notifier.Notify(ctx, sampleEvent(alarmapp.LifecycleOpened))
	notifier.Notify(ctx, sampleEvent(alarmapp.LifecycleRepeated))
	notifier.Notify(ctx, sampleEvent(alarmapp.LifecycleClosed))

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("expected 2 deliveries after filtering, got %d", count)
	}
}

func TestWebhookNotifier_FailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	// Must not panic or propagate the error.
	notifier.Notify(context.Background(), sampleEvent(alarmapp.LifecycleOpened))
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (c *countingNotifier) Notify(context.Context, alarmapp.AlarmEvent) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func TestMultiNotifier_ForwardsToAll(t *testing.T) {
	first := &countingNotifier{}
	second := &countingNotifier{}
	multi := NewMultiNotifier(first, nil, second)

	multi.Notify(context.Background(), sampleEvent(alarmapp.LifecycleOpened))

	if first.count != 1 || second.count != 1 {
		t.Fatalf("expected both notifiers invoked, got %d and %d", first.count, second.count)
	}
}
