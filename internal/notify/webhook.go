package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hubatlas/backend/internal/models"
)

// WebhookSink POSTs every applied request to a configured URL. Sinks are
// built from config once at startup and injected into the dispatcher.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink for one URL.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

// Deliver posts the applied request as JSON.
func (s *WebhookSink) Deliver(ctx context.Context, r *models.UpdateRequest) error {
	payload, err := json.Marshal(map[string]any{
		"id":           r.ID,
		"type":         r.Kind,
		"status":       r.Status,
		"region_id":    r.RegionID,
		"submitted_by": r.SubmittedBy,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status: %d", resp.StatusCode)
	}
	return nil
}
