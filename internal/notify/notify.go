// Package notify hands new chapter deliveries to the chat layer.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Delivery is one new chapter for one subscribed chat. The chat layer turns
// it into messages and documents.
type Delivery struct {
	RunID        string   `json:"run_id"`
	ChatID       string   `json:"chat_id"`
	SeriesURL    string   `json:"series_url"`
	SeriesName   string   `json:"series_name"`
	ChapterTitle string   `json:"chapter_title"`
	ChapterURL   string   `json:"chapter_url"`
	PageURL      string   `json:"page_url,omitempty"`
	Pictures     []string `json:"pictures"`
	OutputFormat string   `json:"output_format"`
	Caption      *string  `json:"caption,omitempty"`
}

// Notifier delivers one Delivery
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

const defaultTimeout = 5 * time.Second

// WebhookNotifier posts deliveries as JSON to the chat layer
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// Deliver implements Notifier
func (n *WebhookNotifier) Deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.RunID != "" {
		req.Header.Set("X-Request-ID", d.RunID)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook: unexpected status code: %d", resp.StatusCode)
	}

	n.logger.Info("delivery_sent", "chat_id", d.ChatID, "series", d.SeriesName, "chapter", d.ChapterTitle)
	return nil
}

// LogNotifier only logs deliveries. Used when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Deliver implements Notifier
func (n *LogNotifier) Deliver(_ context.Context, d Delivery) error {
	n.logger.Info("delivery_pending",
		"chat_id", d.ChatID,
		"series", d.SeriesName,
		"chapter", d.ChapterTitle,
		"chapter_url", d.ChapterURL,
		"page_url", d.PageURL,
		"format", d.OutputFormat,
	)
	return nil
}
