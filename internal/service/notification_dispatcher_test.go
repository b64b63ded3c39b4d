package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestClassifyNotification(t *testing.T) {
	tests := []struct {
		name     string
		txn      domain.Transaction
		expected domain.NotificationKind
	}{
		{"invoice", domain.Transaction{Scenario: domain.ScenarioUnregisteredInvoice, Outcome: domain.PaymentOutcome{Success: true}}, domain.NotificationInvoiceIssued},
		{"debit ok", domain.Transaction{Scenario: domain.ScenarioRegisteredDirect, Outcome: domain.PaymentOutcome{Success: true}}, domain.NotificationPaymentSucceeded},
		{"tag ok", domain.Transaction{Scenario: domain.ScenarioTagExpress, Outcome: domain.PaymentOutcome{Success: true}}, domain.NotificationPaymentSucceeded},
		{"debit declined", domain.Transaction{Scenario: domain.ScenarioRegisteredDirect}, domain.NotificationPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyNotification(&tt.txn))
		})
	}
}

func TestDispatcher_ForwardsIntent(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	d := NewNotificationDispatcher(notifier, zerolog.Nop())

	txn := &domain.Transaction{
		ID:          uuid.New(),
		Plate:       "P-123ABC",
		TollPointID: domain.TollPointZoneA,
		Amount:      decimal.RequireFromString("25.00"),
		Scenario:    domain.ScenarioRegisteredDirect,
		Outcome:     domain.PaymentOutcome{Success: true},
	}
	contact := domain.Contact{Email: strPtr("driver@example.com"), Phone: strPtr("+50255550000")}

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, intent domain.NotificationIntent) error {
			assert.Equal(t, domain.NotificationPaymentSucceeded, intent.Kind)
			assert.Equal(t, txn.ID, intent.TransactionID)
			assert.Equal(t, "P-123ABC", intent.Plate)
			assert.Equal(t, "driver@example.com", *intent.Email)
			assert.Equal(t, "+50255550000", *intent.Phone)
			assert.True(t, txn.Amount.Equal(intent.Amount))
			return nil
		})

	d.Dispatch(context.Background(), txn, contact)
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	var buf bytes.Buffer
	d := NewNotificationDispatcher(notifier, zerolog.New(&buf))

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), &domain.Transaction{ID: uuid.New()}, domain.Contact{})
	})
	assert.Contains(t, buf.String(), "notification dispatch failed")
	assert.Contains(t, buf.String(), "SYS_003")
}
