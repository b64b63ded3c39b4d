package handler

import (
	"time"

	"tollway/internal/adapter/http/dto"
	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"
	"tollway/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// HistoryHandler serves a vehicle's transaction and invoice history.
type HistoryHandler struct {
	historySvc ports.HistoryService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historySvc ports.HistoryService) *HistoryHandler {
	return &HistoryHandler{historySvc: historySvc}
}

// ListTransactions handles GET /api/v1/vehicles/:plate/transactions.
func (h *HistoryHandler) ListTransactions(c *gin.Context) {
	q, ok := bindHistoryQuery(c)
	if !ok {
		return
	}

	params := ports.TransactionListParams{
		Plate:    c.Param("plate"),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Scenario != "" {
		s := domain.Scenario(q.Scenario)
		params.Scenario = &s
	}
	var err error
	if params.From, err = parseTimeParam(q.From, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if params.To, err = parseTimeParam(q.To, "to"); err != nil {
		response.Error(c, err)
		return
	}

	txns, total, err := h.historySvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionListResponse(txns, total, q.Page, q.PageSize))
}

// ListInvoices handles GET /api/v1/vehicles/:plate/invoices.
func (h *HistoryHandler) ListInvoices(c *gin.Context) {
	q, ok := bindHistoryQuery(c)
	if !ok {
		return
	}

	txns, total, err := h.historySvc.ListInvoices(c.Request.Context(), c.Param("plate"), q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionListResponse(txns, total, q.Page, q.PageSize))
}

func bindHistoryQuery(c *gin.Context) (dto.HistoryQuery, bool) {
	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return q, false
	}
	if q.Page == 0 {
		q.Page = defaultPage
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	return q, true
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}
