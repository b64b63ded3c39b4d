package postgres

import (
	"context"
	"errors"
	"fmt"

	"tollway/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository. Balances travel as text so
// NUMERIC values never pass through float64.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts an account. Used by onboarding tooling and tests.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (plate, classification, balance, tag_id, email, phone, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		a.Plate, a.Classification, a.Balance.String(), a.TagID,
		a.Email, a.Phone, a.PaymentMethod, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByPlate fetches an account by plate.
func (r *AccountRepo) GetByPlate(ctx context.Context, plate string) (*domain.Account, error) {
	query := `SELECT plate, classification, balance::text, tag_id, email, phone, payment_method, created_at, updated_at
		FROM accounts WHERE plate = $1`

	a := &domain.Account{}
	var balance string
	err := r.pool.QueryRow(ctx, query, plate).Scan(
		&a.Plate, &a.Classification, &balance, &a.TagID,
		&a.Email, &a.Phone, &a.PaymentMethod, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by plate: %w", err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return a, nil
}

// FindDebit fetches the journaled debit for an event.
func (r *AccountRepo) FindDebit(ctx context.Context, eventID string) (*domain.Debit, error) {
	query := `SELECT event_id, plate, amount::text, balance_before::text, balance_after::text, authorization_code,
		scenario, toll_point_id, tag_id, event_timestamp, payment_method, created_at
		FROM debit_journal WHERE event_id = $1`

	d := &domain.Debit{}
	var amount, before, after string
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&d.EventID, &d.Plate, &amount, &before, &after, &d.AuthorizationCode,
		&d.Scenario, &d.TollPointID, &d.TagID, &d.EventTimestamp, &d.PaymentMethod, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get debit by event: %w", err)
	}

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{{amount, &d.Amount}, {before, &d.BalanceBefore}, {after, &d.BalanceAfter}} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return nil, fmt.Errorf("parse debit amount %q: %w", f.raw, err)
		}
	}
	return d, nil
}

// ConditionalDebit journals the debit and applies the compare-and-swap balance
// update in one transaction. The journal insert goes first so a concurrent
// delivery of the same event blocks on the primary key and then sees a duplicate.
func (r *AccountRepo) ConditionalDebit(ctx context.Context, d *domain.Debit) (domain.DebitStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.DebitConflict, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	journal := `INSERT INTO debit_journal (event_id, plate, amount, balance_before, balance_after, authorization_code,
		scenario, toll_point_id, tag_id, event_timestamp, payment_method, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING`

	tag, err := tx.Exec(ctx, journal,
		d.EventID, d.Plate, d.Amount.String(), d.BalanceBefore.String(), d.BalanceAfter.String(), d.AuthorizationCode,
		d.Scenario, d.TollPointID, d.TagID, d.EventTimestamp, d.PaymentMethod, d.CreatedAt,
	)
	if err != nil {
		return domain.DebitConflict, fmt.Errorf("insert debit journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.DebitDuplicate, nil
	}

	update := `UPDATE accounts SET balance = $1::numeric, updated_at = $2
		WHERE plate = $3 AND balance = $4::numeric`

	tag, err = tx.Exec(ctx, update, d.BalanceAfter.String(), d.CreatedAt, d.Plate, d.BalanceBefore.String())
	if err != nil {
		return domain.DebitConflict, fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.DebitConflict, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DebitConflict, fmt.Errorf("commit debit tx: %w", err)
	}
	return domain.DebitApplied, nil
}
