package service

import (
	"context"
	"fmt"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/rs/zerolog"
)

// TransactionRecorderImpl implements ports.TransactionRecorder on top of an
// append-only, create-if-absent store.
type TransactionRecorderImpl struct {
	txRepo ports.TransactionRepository
	log    zerolog.Logger
}

// NewTransactionRecorder creates a recorder.
func NewTransactionRecorder(txRepo ports.TransactionRepository, log zerolog.Logger) *TransactionRecorderImpl {
	return &TransactionRecorderImpl{txRepo: txRepo, log: log}
}

// Record writes txn unless a record for its event already exists, in which
// case the existing record is returned and created is false.
func (r *TransactionRecorderImpl) Record(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, bool, error) {
	stored, created, err := r.txRepo.CreateIfAbsent(ctx, txn)
	if err != nil {
		return nil, false, apperror.ErrPersistence(fmt.Errorf("record transaction: %w", err))
	}

	if !created {
		r.log.Info().
			Str("event_id", txn.EventID).
			Str("tx_id", stored.ID.String()).
			Msg("transaction already recorded for event, keeping existing")
		return stored, false, nil
	}

	r.log.Info().
		Str("event_id", stored.EventID).
		Str("tx_id", stored.ID.String()).
		Str("plate", stored.Plate).
		Str("scenario", string(stored.Scenario)).
		Str("amount", stored.Amount.StringFixed(2)).
		Bool("success", stored.Outcome.Success).
		Msg("transaction recorded")
	return stored, true, nil
}
