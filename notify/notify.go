// Package notify delivers "seats found" notifications to job owners.
// Delivery is fire-and-forget: a failed notification is logged by the
// caller and never affects the job's status.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"seatwatch/seatcheck"
)

// Notifier is the notification capability invoked after a successful
// seat check.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, result *seatcheck.Result) error
}

// Nop discards notifications.
type Nop struct{}

var _ Notifier = Nop{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, *seatcheck.Result) error { return nil }

// Multi fans one notification out to several notifiers. All are
// attempted; the first error is returned.
type Multi []Notifier

var _ Notifier = Multi{}

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ownerID string, result *seatcheck.Result) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, ownerID, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DefaultWebhookTimeout bounds one webhook delivery.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHTTPClient overrides the HTTP client used for delivery.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// Webhook posts the check result as JSON to a configured endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook builds a webhook notifier for the given endpoint.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: DefaultWebhookTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// payload is the webhook body.
type payload struct {
	OwnerID string            `json:"ownerId"`
	Result  *seatcheck.Result `json:"result"`
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, ownerID string, result *seatcheck.Result) error {
	body, err := json.Marshal(payload{OwnerID: ownerID, Result: result})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}
