package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// TollProcessorImpl implements ports.TollProcessor.
type TollProcessorImpl struct {
	resolver   ports.IdentityResolver
	fees       ports.FeeCalculator
	ledger     ports.LedgerProcessor
	recorder   ports.TransactionRecorder
	dispatcher ports.NotificationDispatcher
	accounts   ports.AccountRepository
	txRepo     ports.TransactionRepository
	txCache    ports.TransactionCache
	now        func() time.Time
	log        zerolog.Logger
}

// NewTollProcessor wires the billing pipeline.
func NewTollProcessor(
	resolver ports.IdentityResolver,
	fees ports.FeeCalculator,
	ledger ports.LedgerProcessor,
	recorder ports.TransactionRecorder,
	dispatcher ports.NotificationDispatcher,
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	txCache ports.TransactionCache,
	log zerolog.Logger,
) *TollProcessorImpl {
	return &TollProcessorImpl{
		resolver:   resolver,
		fees:       fees,
		ledger:     ledger,
		recorder:   recorder,
		dispatcher: dispatcher,
		accounts:   accounts,
		txRepo:     txRepo,
		txCache:    txCache,
		now:        time.Now,
		log:        log,
	}
}

// Process runs one event through resolve, fee, settle, record and notify.
// Redelivering an already processed event returns its recorded transaction.
func (p *TollProcessorImpl) Process(ctx context.Context, event domain.TollEvent) (*domain.Transaction, error) {
	event.EventID = strings.TrimSpace(event.EventID)
	if event.EventID == "" {
		return nil, apperror.Validation("eventId is required")
	}

	// Layer 1: Redis idempotency check
	cached, err := p.txCache.Get(ctx, event.EventID)
	if err != nil {
		p.log.Warn().Err(err).Str("event_id", event.EventID).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		p.log.Info().Str("event_id", event.EventID).Str("tx_id", cached.ID.String()).Msg("duplicate delivery served from cache")
		return cached, nil
	}

	// Layer 2: DB idempotency check
	existing, err := p.txRepo.GetByEventID(ctx, event.EventID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		p.log.Info().Str("event_id", event.EventID).Str("tx_id", existing.ID.String()).Msg("duplicate delivery, returning recorded transaction")
		p.fillCache(ctx, existing)
		return existing, nil
	}

	// Layer 3: debit journal. A debit applied by an earlier delivery is recorded
	// as journaled, whatever the account, tag or clock say now.
	journaled, err := p.accounts.FindDebit(ctx, event.EventID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("debit journal check: %w", err))
	}
	if journaled != nil {
		return p.recordJournaled(ctx, journaled)
	}

	resolved, err := p.resolver.Resolve(ctx, event)
	if err != nil {
		return nil, err
	}
	identity := resolved.Resolved

	amount := p.fees.Calculate(resolved.TollPoint, identity.Classification, identity.HasActiveTag)

	settlement, err := p.ledger.Settle(ctx, resolved, amount)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:             uuid.New(),
		EventID:        event.EventID,
		Plate:          identity.Plate,
		TollPointID:    resolved.TollPoint,
		TagID:          identity.TagID,
		EventTimestamp: resolved.Timestamp,
		ProcessedAt:    p.now().UTC(),
		Amount:         amount,
		Scenario:       settlement.Scenario,
		Outcome:        settlement.Outcome,
		Invoice:        settlement.Invoice,
	}

	var contact domain.Contact
	if identity.Account != nil {
		contact = identity.Account.Contact()
	}
	return p.record(ctx, txn, contact)
}

// recordJournaled records the transaction of a debit journaled by an earlier
// delivery that failed before its record was written.
func (p *TollProcessorImpl) recordJournaled(ctx context.Context, d *domain.Debit) (*domain.Transaction, error) {
	p.log.Warn().
		Str("event_id", d.EventID).
		Str("plate", d.Plate).
		Str("auth_code", d.AuthorizationCode).
		Msg("recording journaled debit without re-resolving")

	txn := &domain.Transaction{
		ID:             uuid.New(),
		EventID:        d.EventID,
		Plate:          d.Plate,
		TollPointID:    d.TollPointID,
		TagID:          d.TagID,
		EventTimestamp: d.EventTimestamp,
		ProcessedAt:    p.now().UTC(),
		Amount:         d.Amount,
		Scenario:       d.Scenario,
		Outcome:        d.Outcome(),
	}

	var contact domain.Contact
	account, err := p.accounts.GetByPlate(ctx, d.Plate)
	if err != nil {
		p.log.Warn().Err(err).Str("event_id", d.EventID).Msg("contact lookup failed, notifying without it")
	} else if account != nil {
		contact = account.Contact()
	}
	return p.record(ctx, txn, contact)
}

func (p *TollProcessorImpl) record(ctx context.Context, txn *domain.Transaction, contact domain.Contact) (*domain.Transaction, error) {
	stored, created, err := p.recorder.Record(ctx, txn)
	if err != nil {
		return nil, err
	}

	// Post-process: cache in Redis (best-effort)
	p.fillCache(ctx, stored)

	if created {
		p.dispatcher.Dispatch(ctx, stored, contact)
	}

	p.log.Info().
		Str("event_id", stored.EventID).
		Str("tx_id", stored.ID.String()).
		Str("plate", stored.Plate).
		Str("scenario", string(stored.Scenario)).
		Bool("success", stored.Outcome.Success).
		Msg("toll event processed")

	return stored, nil
}

func (p *TollProcessorImpl) fillCache(ctx context.Context, txn *domain.Transaction) {
	if err := p.txCache.Set(ctx, txn, idempotencyTTL); err != nil {
		p.log.Warn().Err(err).Str("event_id", txn.EventID).Msg("failed to cache transaction in redis")
	}
}
