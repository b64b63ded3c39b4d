package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scenario is the billing path taken for a transaction.
type Scenario string

const (
	ScenarioUnregisteredInvoice Scenario = "unregistered_invoice"
	ScenarioRegisteredDirect    Scenario = "registered_direct"
	ScenarioTagExpress          Scenario = "tag_express"
)

// IsDebit returns true if the scenario settles against the account balance.
func (s Scenario) IsDebit() bool {
	return s == ScenarioRegisteredDirect || s == ScenarioTagExpress
}

// Failure reasons recorded on unsuccessful outcomes.
const (
	ReasonInsufficientFunds = "InsufficientFunds"
)

// PaymentOutcome is the settlement result embedded in a Transaction.
type PaymentOutcome struct {
	Success           bool    `json:"success"`
	AuthorizationCode *string `json:"authorizationCode,omitempty"`
	ErrorReason       *string `json:"errorReason,omitempty"`
	Method            *string `json:"method,omitempty"`
}

// Invoice is the obligation issued for an unregistered crossing.
type Invoice struct {
	InvoiceID           string          `json:"invoiceId"`
	BaseRate            decimal.Decimal `json:"baseRate"`
	SurchargeMultiplier decimal.Decimal `json:"surchargeMultiplier"`
	Penalty             decimal.Decimal `json:"penalty"`
	IssuedAt            time.Time       `json:"issuedAt"`
	DueAt               time.Time       `json:"dueAt"`
	InviteToRegister    bool            `json:"inviteToRegister"`
}

// Transaction is the immutable record of one processed toll event.
type Transaction struct {
	ID             uuid.UUID       `json:"transactionId"`
	EventID        string          `json:"eventId"` // dedup key
	Plate          string          `json:"plate"`
	TollPointID    TollPoint       `json:"tollPointId"`
	TagID          *string         `json:"tagId,omitempty"`
	EventTimestamp time.Time       `json:"eventTimestamp"`
	ProcessedAt    time.Time       `json:"processedAt"`
	Amount         decimal.Decimal `json:"amount"`
	Scenario       Scenario        `json:"scenario"`
	Outcome        PaymentOutcome  `json:"outcome"`
	Invoice        *Invoice        `json:"invoice,omitempty"`
}

// Debit is a journaled balance deduction, one per event at most. It carries
// enough of the crossing to record the transaction without resolving the
// event again.
type Debit struct {
	EventID           string          `json:"eventId"`
	Plate             string          `json:"plate"`
	Amount            decimal.Decimal `json:"amount"`
	BalanceBefore     decimal.Decimal `json:"balanceBefore"`
	BalanceAfter      decimal.Decimal `json:"balanceAfter"`
	AuthorizationCode string          `json:"authorizationCode"`
	Scenario          Scenario        `json:"scenario"`
	TollPointID       TollPoint       `json:"tollPointId"`
	TagID             *string         `json:"tagId,omitempty"`
	EventTimestamp    time.Time       `json:"eventTimestamp"`
	PaymentMethod     string          `json:"paymentMethod"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Outcome is the successful payment outcome the journaled debit stands for.
func (d *Debit) Outcome() PaymentOutcome {
	auth, method := d.AuthorizationCode, d.PaymentMethod
	return PaymentOutcome{
		Success:           true,
		AuthorizationCode: &auth,
		Method:            &method,
	}
}

// DebitStatus is the result of a conditional debit attempt.
type DebitStatus int

const (
	DebitApplied   DebitStatus = iota // balance matched, debit journaled
	DebitConflict                     // balance changed since it was read
	DebitDuplicate                    // event already journaled, nothing changed
)
