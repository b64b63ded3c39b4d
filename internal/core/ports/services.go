package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"tollway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string, scopes []string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Scopes  []string
}

// TransactionCache is the Redis-layer idempotency check (fast path).
type TransactionCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, eventID string) (*domain.Transaction, error)
	Set(ctx context.Context, txn *domain.Transaction, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, stationID string, nonce string, ttl time.Duration) (bool, error)
}

// EventQueue is an at-least-once delivery queue of toll events.
type EventQueue interface {
	Publish(ctx context.Context, event domain.TollEvent) (string, error)
	// Receive returns nil, nil when nothing is available within the block window.
	Receive(ctx context.Context) (*domain.Delivery, error)
	Ack(ctx context.Context, d *domain.Delivery) error
	// DeadLetter parks the delivery with a reason and acknowledges it.
	DeadLetter(ctx context.Context, d *domain.Delivery, reason string) error
}

// Notifier is the external notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, intent domain.NotificationIntent) error
}

// --- Service Ports (Business Logic) ---

// IdentityResolver validates a raw event and resolves it to one plate.
type IdentityResolver interface {
	Resolve(ctx context.Context, event domain.TollEvent) (*ResolvedEvent, error)
}

// ResolvedEvent is a validated event together with its resolved identity.
type ResolvedEvent struct {
	EventID   string
	TollPoint domain.TollPoint
	Timestamp time.Time
	Identity  domain.Identity
	Resolved  domain.ResolvedIdentity
}

// FeeCalculator computes the exact amount owed for a crossing.
type FeeCalculator interface {
	Calculate(tollPoint domain.TollPoint, classification domain.Classification, hasActiveTag bool) decimal.Decimal
}

// LedgerProcessor settles an amount against the resolved account.
type LedgerProcessor interface {
	Settle(ctx context.Context, event *ResolvedEvent, amount decimal.Decimal) (*Settlement, error)
}

// Settlement is the ledger's result for one event.
type Settlement struct {
	Scenario domain.Scenario
	Outcome  domain.PaymentOutcome
	Invoice  *domain.Invoice
}

// TransactionRecorder persists exactly one transaction per event.
type TransactionRecorder interface {
	// Record returns the canonical record and whether this call created it.
	Record(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, bool, error)
}

// NotificationDispatcher hands settled transactions to the notifier.
// It never returns an error to the pipeline.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, txn *domain.Transaction, contact domain.Contact)
}

// TollProcessor runs one event through the whole billing pipeline.
type TollProcessor interface {
	Process(ctx context.Context, event domain.TollEvent) (*domain.Transaction, error)
}

// HistoryService serves read-only transaction history.
type HistoryService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	ListInvoices(ctx context.Context, plate string, page, pageSize int) ([]domain.Transaction, int64, error)
}
