package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tollway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntent() domain.NotificationIntent {
	email := "driver@example.com"
	return domain.NotificationIntent{
		Kind:          domain.NotificationPaymentSucceeded,
		TransactionID: uuid.New(),
		Plate:         "P-123ABC",
		Email:         &email,
		Amount:        decimal.RequireFromString("22.50"),
		TollPointID:   domain.TollPointZoneA,
		Scenario:      domain.ScenarioTagExpress,
		Outcome:       domain.PaymentOutcome{Success: true},
	}
}

// mockHTTPClient replays canned responses in order.
type mockHTTPClient struct {
	calls     int32
	responses []int
	err       error
	lastBody  []byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	i := atomic.AddInt32(&m.calls, 1) - 1
	m.lastBody, _ = io.ReadAll(req.Body)
	if m.err != nil {
		return nil, m.err
	}
	status := m.responses[len(m.responses)-1]
	if int(i) < len(m.responses) {
		status = m.responses[i]
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func newTestWebhook(client HTTPClient, retries int) *WebhookNotifier {
	n := NewWebhookNotifier("http://notify.local/hook", client, retries, zerolog.Nop())
	n.backoff = time.Millisecond
	return n
}

func TestWebhookNotifier_Delivered(t *testing.T) {
	var received domain.NotificationIntent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.Client(), 0, zerolog.Nop())
	intent := testIntent()

	require.NoError(t, n.Notify(context.Background(), intent))
	assert.Equal(t, intent.TransactionID, received.TransactionID)
	assert.Equal(t, domain.NotificationPaymentSucceeded, received.Kind)
	assert.True(t, intent.Amount.Equal(received.Amount))
}

func TestWebhookNotifier_RetriesThenSucceeds(t *testing.T) {
	client := &mockHTTPClient{responses: []int{502, 503, 200}}
	n := newTestWebhook(client, 2)

	require.NoError(t, n.Notify(context.Background(), testIntent()))
	assert.Equal(t, int32(3), client.calls)
	assert.Contains(t, string(client.lastBody), `"plate":"P-123ABC"`)
}

func TestWebhookNotifier_RetriesExhausted(t *testing.T) {
	client := &mockHTTPClient{responses: []int{500}}
	n := newTestWebhook(client, 2)

	err := n.Notify(context.Background(), testIntent())
	assert.ErrorContains(t, err, "retries exhausted")
	assert.Equal(t, int32(3), client.calls)
}

func TestWebhookNotifier_TransportError(t *testing.T) {
	client := &mockHTTPClient{err: errors.New("connection refused")}
	n := newTestWebhook(client, 1)

	err := n.Notify(context.Background(), testIntent())
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, int32(2), client.calls)
}

func TestWebhookNotifier_StopsOnCancelledContext(t *testing.T) {
	client := &mockHTTPClient{responses: []int{500}}
	n := newTestWebhook(client, 5)
	n.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Notify(ctx, testIntent())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), client.calls)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	intent := testIntent()
	intent.Kind = domain.NotificationInvoiceIssued
	intent.Invoice = &domain.Invoice{InvoiceID: "INV-0A1B2C3D", DueAt: time.Now().AddDate(0, 0, 15)}

	require.NoError(t, n.Notify(context.Background(), intent))
	out := buf.String()
	assert.Contains(t, out, `"kind":"invoice_issued"`)
	assert.Contains(t, out, `"invoiceId":"INV-0A1B2C3D"`)
	assert.Contains(t, out, `"amount":"22.50"`)
	assert.Contains(t, out, `"email":"driver@example.com"`)
}
