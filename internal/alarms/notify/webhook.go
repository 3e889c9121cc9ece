package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	alarmapp "unified-nms/internal/alarms/application"
)

// WebhookNotifier posts alarm lifecycle events to an HTTP endpoint as JSON.
// Delivery is best effort; failures are logged and never surfaced to the
// caller.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *log.Logger
	events map[string]struct{}
}

// WebhookOption configures the webhook notifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) WebhookOption {
	return func(n *WebhookNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEventFilter limits delivery to the listed lifecycle types. Repeated
// occurrences in particular can be noisy for busy fleets.
func WithEventFilter(events ...string) WebhookOption {
	return func(n *WebhookNotifier) {
		if len(events) == 0 {
			return
		}
		n.events = make(map[string]struct{}, len(events))
		for _, event := range events {
			n.events[event] = struct{}{}
		}
	}
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook notifier: empty url")
	}
	notifier := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

// Notify implements AlarmNotifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event alarmapp.AlarmEvent) {
	if n == nil || n.url == "" {
		return
	}
	if n.events != nil {
		if _, ok := n.events[event.Type]; !ok {
			return
		}
	}
	if err := n.send(ctx, event); err != nil {
		n.logger.Printf("webhook notify failed: alarm=%s event=%s err=%v", event.Alarm.AlarmID, event.Type, err)
	}
}

func (n *WebhookNotifier) send(ctx context.Context, event alarmapp.AlarmEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
