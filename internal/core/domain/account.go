package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Classification is the enrollment state of a vehicle account.
type Classification string

const (
	ClassificationRegistered   Classification = "registered"
	ClassificationUnregistered Classification = "unregistered"
)

// Account is a vehicle account keyed by plate. Balance is only ever changed by
// the ledger's conditional debit.
type Account struct {
	Plate          string          `json:"plate"`
	Classification Classification  `json:"classification"`
	Balance        decimal.Decimal `json:"balance"`
	TagID          *string         `json:"tagId,omitempty"`
	Email          *string         `json:"email,omitempty"`
	Phone          *string         `json:"phone,omitempty"`
	PaymentMethod  *string         `json:"paymentMethod,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsRegistered returns true if the account is enrolled for direct debit.
func (a *Account) IsRegistered() bool {
	return a.Classification == ClassificationRegistered
}

// ImplicitUnregisteredAccount stands in for a plate that has no stored account:
// unregistered, zero balance, no contact info.
func ImplicitUnregisteredAccount(plate string) *Account {
	return &Account{
		Plate:          plate,
		Classification: ClassificationUnregistered,
		Balance:        decimal.Zero,
	}
}

// Contact is the notification address book entry of an account.
type Contact struct {
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Contact returns the account's contact info.
func (a *Account) Contact() Contact {
	return Contact{Email: a.Email, Phone: a.Phone}
}
