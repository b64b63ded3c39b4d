package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationKind classifies a settled transaction for the notifier.
type NotificationKind string

const (
	NotificationInvoiceIssued    NotificationKind = "invoice_issued"
	NotificationPaymentSucceeded NotificationKind = "payment_succeeded"
	NotificationPaymentFailed    NotificationKind = "payment_failed"
)

// NotificationIntent is handed to the external notifier. Rendering the
// human-readable message is the notifier's job.
type NotificationIntent struct {
	Kind          NotificationKind `json:"kind"`
	TransactionID uuid.UUID        `json:"transactionId"`
	Plate         string           `json:"plate"`
	Email         *string          `json:"email,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	TollPointID   TollPoint        `json:"tollPointId"`
	Scenario      Scenario         `json:"scenario"`
	Outcome       PaymentOutcome   `json:"outcome"`
	Invoice       *Invoice         `json:"invoice,omitempty"`
}
