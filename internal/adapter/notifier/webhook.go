// Package notifier delivers notification intents to the outside world.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tollway/internal/core/domain"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier POSTs notification intents as JSON to a fixed URL.
type WebhookNotifier struct {
	url        string
	httpClient HTTPClient
	retries    int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. retries is the number of
// additional attempts after the first.
func NewWebhookNotifier(url string, httpClient HTTPClient, retries int, log zerolog.Logger) *WebhookNotifier {
	if retries < 0 {
		retries = 0
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: httpClient,
		retries:    retries,
		backoff:    500 * time.Millisecond,
		log:        log,
	}
}

// Notify delivers intent, retrying transport errors and non-2xx responses
// with linear backoff until retries run out or ctx is done.
func (n *WebhookNotifier) Notify(ctx context.Context, intent domain.NotificationIntent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	txID := intent.TransactionID.String()
	var lastErr error
	for attempt := 0; attempt <= n.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("notification cancelled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(time.Duration(attempt) * n.backoff):
			}
		}

		lastErr = n.post(ctx, body)
		if lastErr == nil {
			n.log.Info().Str("tx_id", txID).Str("kind", string(intent.Kind)).Int("attempt", attempt+1).Msg("webhook: delivered")
			return nil
		}
		n.log.Warn().Err(lastErr).Str("tx_id", txID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
	}
	return fmt.Errorf("webhook retries exhausted: %w", lastErr)
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
