package dto

import (
	"time"

	"tollway/internal/core/domain"
)

// TollEventRequest is the request body a toll station posts for one crossing.
// Identity and timestamp semantics are checked by the pipeline, not here.
type TollEventRequest struct {
	EventID     string  `json:"eventId" binding:"required,max=128,safe_id"`
	Plate       *string `json:"plate,omitempty" binding:"omitempty,max=16"`
	TagID       *string `json:"tagId,omitempty" binding:"omitempty,max=16"`
	TollPointID string  `json:"tollPointId" binding:"required,max=32"`
	Timestamp   string  `json:"timestamp" binding:"required,max=64"`
}

// ToDomain converts the request into a queued toll event.
func (r TollEventRequest) ToDomain() domain.TollEvent {
	return domain.TollEvent{
		EventID:     r.EventID,
		Plate:       r.Plate,
		TagID:       r.TagID,
		TollPointID: r.TollPointID,
		Timestamp:   r.Timestamp,
	}
}

// TollEventAccepted is the 202 body for a queued event.
type TollEventAccepted struct {
	EventID   string `json:"eventId"`
	MessageID string `json:"messageId"`
}

// HistoryQuery holds the query parameters of the history endpoints.
type HistoryQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	Scenario string `form:"scenario" binding:"omitempty,oneof=unregistered_invoice registered_direct tag_express"`
	From     string `form:"from" binding:"omitempty"`
	To       string `form:"to" binding:"omitempty"`
}

// InvoiceResponse is the invoice breakdown of an unregistered crossing.
type InvoiceResponse struct {
	InvoiceID           string `json:"invoiceId"`
	BaseRate            string `json:"baseRate"`
	SurchargeMultiplier string `json:"surchargeMultiplier"`
	Penalty             string `json:"penalty"`
	IssuedAt            string `json:"issuedAt"`
	DueAt               string `json:"dueAt"`
	InviteToRegister    bool   `json:"inviteToRegister"`
}

// TransactionResponse is the response body for one recorded transaction.
type TransactionResponse struct {
	ID                string           `json:"transactionId"`
	EventID           string           `json:"eventId"`
	Plate             string           `json:"plate"`
	TollPointID       string           `json:"tollPointId"`
	TagID             *string          `json:"tagId,omitempty"`
	Amount            string           `json:"amount"`
	Scenario          string           `json:"scenario"`
	Success           bool             `json:"success"`
	AuthorizationCode *string          `json:"authorizationCode,omitempty"`
	ErrorReason       *string          `json:"errorReason,omitempty"`
	PaymentMethod     *string          `json:"paymentMethod,omitempty"`
	Invoice           *InvoiceResponse `json:"invoice,omitempty"`
	EventTimestamp    string           `json:"eventTimestamp"`
	ProcessedAt       string           `json:"processedAt"`
}

// NewTransactionResponse renders a transaction with money as fixed two-decimal strings.
func NewTransactionResponse(t domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                t.ID.String(),
		EventID:           t.EventID,
		Plate:             t.Plate,
		TollPointID:       string(t.TollPointID),
		TagID:             t.TagID,
		Amount:            t.Amount.StringFixed(2),
		Scenario:          string(t.Scenario),
		Success:           t.Outcome.Success,
		AuthorizationCode: t.Outcome.AuthorizationCode,
		ErrorReason:       t.Outcome.ErrorReason,
		PaymentMethod:     t.Outcome.Method,
		EventTimestamp:    t.EventTimestamp.UTC().Format(time.RFC3339),
		ProcessedAt:       t.ProcessedAt.UTC().Format(time.RFC3339),
	}
	if inv := t.Invoice; inv != nil {
		resp.Invoice = &InvoiceResponse{
			InvoiceID:           inv.InvoiceID,
			BaseRate:            inv.BaseRate.StringFixed(2),
			SurchargeMultiplier: inv.SurchargeMultiplier.String(),
			Penalty:             inv.Penalty.StringFixed(2),
			IssuedAt:            inv.IssuedAt.UTC().Format(time.RFC3339),
			DueAt:               inv.DueAt.UTC().Format(time.RFC3339),
			InviteToRegister:    inv.InviteToRegister,
		}
	}
	return resp
}

// TransactionListResponse wraps paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}

// NewTransactionListResponse builds a page envelope.
func NewTransactionListResponse(txns []domain.Transaction, total int64, page, pageSize int) TransactionListResponse {
	items := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		items = append(items, NewTransactionResponse(t))
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
