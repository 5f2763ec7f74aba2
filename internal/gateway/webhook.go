package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"call-classifier/internal/classification"
	"call-classifier/pkg/logger"
)

// WebhookNotifier POSTs each new classification as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Event          string                        `json:"event"`
	Classification classification.Classification `json:"classification"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, c classification.Classification) error {
	body, err := json.Marshal(webhookPayload{Event: "classification.created", Classification: c})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	logger.Get().Debugw("webhook delivered", "url", w.url, "classification_id", c.ID, "status", resp.StatusCode)
	return nil
}
