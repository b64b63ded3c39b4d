package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, event_id, plate, toll_point_id, tag_id, event_timestamp, processed_at,
		amount::text, scenario, success, authorization_code, error_reason, payment_method, invoice`

// TransactionRepo implements ports.TransactionRepository. Rows are never
// updated or deleted.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// CreateIfAbsent inserts t unless its event id is already recorded, in which
// case the stored row is returned.
func (r *TransactionRepo) CreateIfAbsent(ctx context.Context, t *domain.Transaction) (*domain.Transaction, bool, error) {
	var invoice []byte
	if t.Invoice != nil {
		var err error
		if invoice, err = json.Marshal(t.Invoice); err != nil {
			return nil, false, fmt.Errorf("marshal invoice: %w", err)
		}
	}

	query := `INSERT INTO transactions (id, event_id, plate, toll_point_id, tag_id, event_timestamp, processed_at,
		amount, scenario, success, authorization_code, error_reason, payment_method, invoice)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (event_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		t.ID, t.EventID, t.Plate, t.TollPointID, t.TagID, t.EventTimestamp, t.ProcessedAt,
		t.Amount.String(), t.Scenario, t.Outcome.Success, t.Outcome.AuthorizationCode,
		t.Outcome.ErrorReason, t.Outcome.Method, invoice,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert transaction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return t, true, nil
	}

	existing, err := r.GetByEventID(ctx, t.EventID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("transaction for event %s conflicted but was not found", t.EventID)
	}
	return existing, false, nil
}

// GetByEventID fetches the transaction recorded for an event.
func (r *TransactionRepo) GetByEventID(ctx context.Context, eventID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE event_id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by event: %w", err)
	}
	return t, nil
}

// List fetches a plate's transactions with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("plate = $%d", argIdx))
	args = append(args, params.Plate)
	argIdx++

	if params.Scenario != nil {
		conditions = append(conditions, fmt.Sprintf("scenario = $%d", argIdx))
		args = append(args, *params.Scenario)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("event_timestamp >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("event_timestamp <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY processed_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var amount string
	var invoice []byte
	err := row.Scan(
		&t.ID, &t.EventID, &t.Plate, &t.TollPointID, &t.TagID, &t.EventTimestamp, &t.ProcessedAt,
		&amount, &t.Scenario, &t.Outcome.Success, &t.Outcome.AuthorizationCode,
		&t.Outcome.ErrorReason, &t.Outcome.Method, &invoice,
	)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if len(invoice) > 0 {
		t.Invoice = &domain.Invoice{}
		if err := json.Unmarshal(invoice, t.Invoice); err != nil {
			return nil, fmt.Errorf("unmarshal invoice: %w", err)
		}
	}
	return t, nil
}
