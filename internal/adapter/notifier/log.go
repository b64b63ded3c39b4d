package notifier

import (
	"context"

	"tollway/internal/core/domain"

	"github.com/rs/zerolog"
)

// LogNotifier writes notification intents to the log. Used when no webhook
// URL is configured and by the simulate command.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, intent domain.NotificationIntent) error {
	ev := n.log.Info().
		Str("kind", string(intent.Kind)).
		Str("tx_id", intent.TransactionID.String()).
		Str("plate", intent.Plate).
		Str("amount", intent.Amount.StringFixed(2)).
		Str("scenario", string(intent.Scenario)).
		Bool("success", intent.Outcome.Success)
	if intent.Email != nil {
		ev = ev.Str("email", *intent.Email)
	}
	if intent.Invoice != nil {
		ev = ev.Str("invoice_id", intent.Invoice.InvoiceID).Time("due_at", intent.Invoice.DueAt)
	}
	ev.Msg("notification")
	return nil
}
