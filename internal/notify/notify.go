// Package notify delivers operator-facing messages. Delivery is
// fire-and-forget from the pipeline's perspective: failures are logged,
// never retried or queued here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Channel is the outbound messaging capability. subject is a routing hint
// (chat channel, NATS subject suffix); text is the rendered message.
type Channel interface {
	Send(ctx context.Context, subject, text string) error
	Type() string
}

// WebhookChannel posts messages as JSON to a generic HTTP endpoint.
type WebhookChannel struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		URL:     url,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *WebhookChannel) Type() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, subject, text string) error {
	payload := map[string]string{
		"subject":   subject,
		"text":      text,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Watchdesk/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SlackChannel posts messages to a Slack incoming webhook.
type SlackChannel struct {
	WebhookURL string
	Timeout    time.Duration
	client     *http.Client
}

// NewSlackChannel creates a Slack notification channel.
func NewSlackChannel(webhookURL string, timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		WebhookURL: webhookURL,
		Timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *SlackChannel) Type() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, subject, text string) error {
	payload := map[string]interface{}{
		"text": fmt.Sprintf("*%s*\n```%s```", subject, text),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogChannel writes messages to a logger. Used in tests and as the default
// when no transport is configured.
type LogChannel struct {
	logger func(format string, v ...interface{})
}

// NewLogChannel creates a log-based notification channel.
func NewLogChannel(logger func(format string, v ...interface{})) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, subject, text string) error {
	l.logger("NOTIFY [%s]: %s", subject, text)
	return nil
}

// MultiChannel fans a message out to several channels. It succeeds if at
// least one underlying channel succeeds.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel creates a fan-out channel.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

func (m *MultiChannel) Type() string {
	return "multi"
}

func (m *MultiChannel) Send(ctx context.Context, subject, text string) error {
	var lastErr error
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(ctx, subject, text); err != nil {
			lastErr = fmt.Errorf("%s channel failed: %w", ch.Type(), err)
		} else {
			successCount++
		}
	}

	if successCount == 0 && len(m.channels) > 0 {
		return fmt.Errorf("all notification channels failed: %w", lastErr)
	}
	return nil
}
