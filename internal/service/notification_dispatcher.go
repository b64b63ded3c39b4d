package service

import (
	"context"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/rs/zerolog"
)

// NotificationDispatcherImpl implements ports.NotificationDispatcher.
type NotificationDispatcherImpl struct {
	notifier ports.Notifier
	log      zerolog.Logger
}

// NewNotificationDispatcher creates a dispatcher forwarding to notifier.
func NewNotificationDispatcher(notifier ports.Notifier, log zerolog.Logger) *NotificationDispatcherImpl {
	return &NotificationDispatcherImpl{notifier: notifier, log: log}
}

// Dispatch forwards the intent for txn. Failures are logged and swallowed: the
// transaction is already committed.
func (d *NotificationDispatcherImpl) Dispatch(ctx context.Context, txn *domain.Transaction, contact domain.Contact) {
	intent := BuildNotificationIntent(txn, contact)

	if err := d.notifier.Notify(ctx, intent); err != nil {
		d.log.Error().
			Err(apperror.ErrNotification(err)).
			Str("tx_id", txn.ID.String()).
			Str("kind", string(intent.Kind)).
			Msg("notification dispatch failed")
		return
	}

	d.log.Debug().
		Str("tx_id", txn.ID.String()).
		Str("kind", string(intent.Kind)).
		Msg("notification dispatched")
}

// ClassifyNotification maps a transaction to its notification kind.
func ClassifyNotification(txn *domain.Transaction) domain.NotificationKind {
	switch {
	case txn.Scenario == domain.ScenarioUnregisteredInvoice:
		return domain.NotificationInvoiceIssued
	case txn.Outcome.Success:
		return domain.NotificationPaymentSucceeded
	default:
		return domain.NotificationPaymentFailed
	}
}

// BuildNotificationIntent assembles the structured intent for txn.
func BuildNotificationIntent(txn *domain.Transaction, contact domain.Contact) domain.NotificationIntent {
	return domain.NotificationIntent{
		Kind:          ClassifyNotification(txn),
		TransactionID: txn.ID,
		Plate:         txn.Plate,
		Email:         contact.Email,
		Phone:         contact.Phone,
		Amount:        txn.Amount,
		TollPointID:   txn.TollPointID,
		Scenario:      txn.Scenario,
		Outcome:       txn.Outcome,
		Invoice:       txn.Invoice,
	}
}
