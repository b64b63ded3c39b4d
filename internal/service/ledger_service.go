package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	methodInvoice = "invoice"
	methodBalance = "balance"
)

// LedgerServiceImpl implements ports.LedgerProcessor with an optimistic
// compare-and-swap debit against the account balance.
type LedgerServiceImpl struct {
	accounts       ports.AccountRepository
	maxAttempts    int
	baseBackoff    time.Duration
	invoiceDueDays int
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
	log            zerolog.Logger
}

// NewLedgerService creates a ledger processor.
func NewLedgerService(
	accounts ports.AccountRepository,
	maxAttempts int,
	baseBackoff time.Duration,
	invoiceDueDays int,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &LedgerServiceImpl{
		accounts:       accounts,
		maxAttempts:    maxAttempts,
		baseBackoff:    baseBackoff,
		invoiceDueDays: invoiceDueDays,
		now:            time.Now,
		sleep:          sleepContext,
		log:            log,
	}
}

// Settle issues an invoice for unregistered vehicles or debits the balance of
// registered ones. A debit already journaled for the event is returned as-is.
func (s *LedgerServiceImpl) Settle(ctx context.Context, event *ports.ResolvedEvent, amount decimal.Decimal) (*ports.Settlement, error) {
	scenario := event.Resolved.Scenario()
	if !scenario.IsDebit() {
		return s.invoice(event, scenario), nil
	}

	journaled, err := s.accounts.FindDebit(ctx, event.EventID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("find debit: %w", err))
	}
	if journaled != nil {
		s.log.Info().
			Str("event_id", event.EventID).
			Str("plate", journaled.Plate).
			Msg("debit already journaled, reusing authorization")
		return journaledSettlement(journaled), nil
	}

	plate := event.Resolved.Plate
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		account, err := s.accounts.GetByPlate(ctx, plate)
		if err != nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("read balance: %w", err))
		}
		if account == nil {
			return nil, apperror.ErrUnknownAccount(plate)
		}

		if account.Balance.LessThan(amount) {
			s.log.Info().
				Str("event_id", event.EventID).
				Str("plate", plate).
				Str("balance", account.Balance.StringFixed(2)).
				Str("amount", amount.StringFixed(2)).
				Msg("insufficient funds")
			return s.declined(event, scenario, account), nil
		}

		debit := &domain.Debit{
			EventID:           event.EventID,
			Plate:             plate,
			Amount:            amount,
			BalanceBefore:     account.Balance,
			BalanceAfter:      account.Balance.Sub(amount),
			AuthorizationCode: newAuthorizationCode(),
			Scenario:          scenario,
			TollPointID:       event.TollPoint,
			TagID:             event.Resolved.TagID,
			EventTimestamp:    event.Timestamp,
			PaymentMethod:     paymentMethod(event.Resolved.Account),
			CreatedAt:         s.now().UTC(),
		}

		status, err := s.accounts.ConditionalDebit(ctx, debit)
		if err != nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("conditional debit: %w", err))
		}

		switch status {
		case domain.DebitApplied:
			s.log.Info().
				Str("event_id", event.EventID).
				Str("plate", plate).
				Str("amount", amount.StringFixed(2)).
				Str("balance_after", debit.BalanceAfter.StringFixed(2)).
				Int("attempt", attempt).
				Msg("balance debited")
			return journaledSettlement(debit), nil

		case domain.DebitDuplicate:
			// A concurrent delivery of the same event won the journal insert.
			existing, err := s.accounts.FindDebit(ctx, event.EventID)
			if err != nil {
				return nil, apperror.ErrPersistence(fmt.Errorf("find debit: %w", err))
			}
			if existing == nil {
				return nil, apperror.ErrPersistence(fmt.Errorf("debit journal for %s reported duplicate but not found", event.EventID))
			}
			return journaledSettlement(existing), nil

		case domain.DebitConflict:
			s.log.Debug().
				Str("event_id", event.EventID).
				Str("plate", plate).
				Int("attempt", attempt).
				Msg("balance changed concurrently")
			if attempt < s.maxAttempts {
				if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
					return nil, apperror.ErrConcurrencyConflict(err)
				}
			}
		}
	}

	s.log.Warn().
		Str("event_id", event.EventID).
		Str("plate", plate).
		Int("attempts", s.maxAttempts).
		Msg("debit retries exhausted")
	return nil, apperror.ErrConcurrencyConflict(fmt.Errorf("plate %s: %d attempts", plate, s.maxAttempts))
}

func (s *LedgerServiceImpl) invoice(event *ports.ResolvedEvent, scenario domain.Scenario) *ports.Settlement {
	issuedAt := s.now().UTC()
	method := methodInvoice
	return &ports.Settlement{
		Scenario: scenario,
		Outcome: domain.PaymentOutcome{
			Success: true,
			Method:  &method,
		},
		Invoice: &domain.Invoice{
			InvoiceID:           newInvoiceID(),
			BaseRate:            event.TollPoint.BaseRate(),
			SurchargeMultiplier: unregisteredSurcharge,
			Penalty:             unregisteredPenalty,
			IssuedAt:            issuedAt,
			DueAt:               issuedAt.AddDate(0, 0, s.invoiceDueDays),
			InviteToRegister:    true,
		},
	}
}

// journaledSettlement settles from the journal row, never from the current
// resolution, so a redelivery reports the debit exactly as it was applied.
func journaledSettlement(d *domain.Debit) *ports.Settlement {
	return &ports.Settlement{
		Scenario: d.Scenario,
		Outcome:  d.Outcome(),
	}
}

func (s *LedgerServiceImpl) declined(_ *ports.ResolvedEvent, scenario domain.Scenario, account *domain.Account) *ports.Settlement {
	reason := domain.ReasonInsufficientFunds
	method := paymentMethod(account)
	return &ports.Settlement{
		Scenario: scenario,
		Outcome: domain.PaymentOutcome{
			Success:     false,
			ErrorReason: &reason,
			Method:      &method,
		},
	}
}

// backoff returns an exponentially growing delay with equal jitter:
// a value in [d/2, d) where d = base * 2^(attempt-1).
func (s *LedgerServiceImpl) backoff(attempt int) time.Duration {
	d := s.baseBackoff << (attempt - 1)
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(d-half)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func paymentMethod(account *domain.Account) string {
	if account != nil && account.PaymentMethod != nil && *account.PaymentMethod != "" {
		return *account.PaymentMethod
	}
	return methodBalance
}

func newAuthorizationCode() string {
	return "AUTH-" + shortHex()
}

func newInvoiceID() string {
	return "INV-" + shortHex()
}

// shortHex returns 8 upper-case hex characters of a random UUID.
func shortHex() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
