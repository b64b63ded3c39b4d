package service

import (
	"context"
	"strings"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// historyService implements ports.HistoryService.
type historyService struct {
	txRepo ports.TransactionRepository
}

// NewHistoryService creates a new history service.
func NewHistoryService(txRepo ports.TransactionRepository) ports.HistoryService {
	return &historyService{txRepo: txRepo}
}

// ListTransactions returns a paginated list of a vehicle's transactions, newest first.
func (s *historyService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	plate := strings.ToUpper(strings.TrimSpace(params.Plate))
	if !platePattern.MatchString(plate) {
		return nil, 0, apperror.ErrMalformedPlate()
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}
	params.Plate = plate
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

// ListInvoices returns the invoice transactions of an unregistered vehicle.
func (s *historyService) ListInvoices(ctx context.Context, plate string, page, pageSize int) ([]domain.Transaction, int64, error) {
	scenario := domain.ScenarioUnregisteredInvoice
	return s.ListTransactions(ctx, ports.TransactionListParams{
		Plate:    plate,
		Scenario: &scenario,
		Page:     page,
		PageSize: pageSize,
	})
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
