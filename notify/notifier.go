// Package notify watches stored tasks and sprint iterations for
// time-based conditions and emits each alert exactly once.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier delivers one alert message. Delivery failures are surfaced
// as errors so the engine can retry the condition on a later scan.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackNotifier creates a notifier for the given webhook URL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts message as a webhook payload.
func (n *SlackNotifier) Send(ctx context.Context, message string) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack: webhook URL not configured")
	}
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("slack: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack: webhook error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
