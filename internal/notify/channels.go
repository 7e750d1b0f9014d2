package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/windasol/korail-watch/internal/httpkit"
)

// DesktopChannel is a best-effort stand-in for an OS toast
// notification. No toast API is available to this module; it logs at
// Info level and never fails.
type DesktopChannel struct {
	logger *slog.Logger
}

func NewDesktopChannel(logger *slog.Logger) *DesktopChannel {
	return &DesktopChannel{logger: logger}
}

func (c *DesktopChannel) Name() string { return "desktop" }

func (c *DesktopChannel) Send(_ context.Context, n Notification) error {
	c.logger.Info("desktop notification", "title", n.Title, "body", n.Body)
	return nil
}

// SoundChannel is a best-effort stand-in for an audible alert. No
// audio device is available to this module; it logs at Info level
// and never fails.
type SoundChannel struct {
	logger *slog.Logger
}

func NewSoundChannel(logger *slog.Logger) *SoundChannel {
	return &SoundChannel{logger: logger}
}

func (c *SoundChannel) Name() string { return "sound" }

func (c *SoundChannel) Send(_ context.Context, n Notification) error {
	c.logger.Info("sound alert", "title", n.Title)
	return nil
}

// WebhookChannel POSTs a JSON payload to a user-configured URL.
type WebhookChannel struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

const webhookTimeout = 10 * time.Second

func NewWebhookChannel(url string, logger *slog.Logger) *WebhookChannel {
	return &WebhookChannel{
		url:        url,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(webhookTimeout)),
		logger:     logger,
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: n.Title + "\n" + n.Body})
	if err != nil {
		return fmt.Errorf("notify: encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		return fmt.Errorf("notify: webhook returned %d: %s", resp.StatusCode, body)
	}
	httpkit.DrainAndClose(resp.Body, 4096)
	return nil
}
