package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WebhookTransport posts a JSON {title, message} body to an arbitrary URL,
// mirroring notifier.py's notify_webhook.
type WebhookTransport struct {
	URL    string
	Client *http.Client
}

func (w *WebhookTransport) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{Timeout: notifyTimeout}
}

// Send posts title and message as JSON to the configured webhook URL.
func (w *WebhookTransport) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}{Title: title, Message: message})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
