package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Compile-time interface check.
var _ Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier POSTs the lead brief to a configured URL so the owner gets
// pinged (chat hook, automation platform) when a lead lands. Notification is
// best effort; delivery success never depends on it.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier for url. client may be nil; a
// 10-second-timeout default is used.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client}
}

// webhookPayload is the JSON body sent to the webhook. The full transcript
// is deliberately omitted; the webhook gets the brief, the store keeps the
// detail.
type webhookPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Project string `json:"project"`
	Summary string `json:"summary,omitempty"`
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, l Lead) error {
	body, err := json.Marshal(webhookPayload{
		ID:      l.ID,
		Name:    l.Name,
		Email:   l.Email,
		Phone:   l.Phone,
		Project: l.Project,
		Summary: l.Summary,
	})
	if err != nil {
		return fmt.Errorf("lead: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("lead: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("lead: webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lead: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
