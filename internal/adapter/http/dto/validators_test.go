package dto

import (
	"testing"
	"time"

	"tollway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := TollEventRequest{
		EventID:     "  evt-001  ",
		TollPointID: " ZONE_A ",
		Timestamp:   " 2026-03-01T08:00:00Z",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "evt-001", req.EventID)
	assert.Equal(t, "ZONE_A", req.TollPointID)
	assert.Equal(t, "2026-03-01T08:00:00Z", req.Timestamp)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := TollEventRequest{TollPointID: "<script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.TollPointID, "&lt;script&gt;")
	assert.NotContains(t, req.TollPointID, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	plate := "  p-123abc  "
	req := TollEventRequest{EventID: "evt-1", Plate: &plate}
	SanitizeStruct(&req)

	assert.Equal(t, "p-123abc", *req.Plate)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := TollEventRequest{EventID: "evt-1"}
	SanitizeStruct(&req)
	assert.Nil(t, req.TagID)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"evt-001",
		"EVT_002",
		"a.b.c",
		"station-01:1700000000",
		"0f8fad5b-d9cb-469f-a165-70867728950e",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"",
		"evt 001",
		"evt;DROP TABLE",
		"<script>",
		"evt/../1",
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

// --- Conversion tests ---

func TestTollEventRequest_ToDomain(t *testing.T) {
	tag := "TAG-001"
	req := TollEventRequest{EventID: "evt-1", TagID: &tag, TollPointID: "ZONE_C", Timestamp: "2026-03-01T08:00:00Z"}

	ev := req.ToDomain()
	assert.Equal(t, "evt-1", ev.EventID)
	assert.Nil(t, ev.Plate)
	assert.Equal(t, "TAG-001", *ev.TagID)
	assert.Equal(t, "ZONE_C", ev.TollPointID)
}

func TestNewTransactionResponse_Invoice(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	method := "invoice"
	txn := domain.Transaction{
		ID:             uuid.New(),
		EventID:        "evt-9",
		Plate:          "U-999XYZ",
		TollPointID:    domain.TollPointZoneD,
		EventTimestamp: now,
		ProcessedAt:    now,
		Amount:         decimal.RequireFromString("67.5"),
		Scenario:       domain.ScenarioUnregisteredInvoice,
		Outcome:        domain.PaymentOutcome{Success: true, Method: &method},
		Invoice: &domain.Invoice{
			InvoiceID:           "INV-ABCDEF01",
			BaseRate:            decimal.NewFromInt(35),
			SurchargeMultiplier: decimal.RequireFromString("1.5"),
			Penalty:             decimal.NewFromInt(15),
			IssuedAt:            now,
			DueAt:               now.AddDate(0, 0, 15),
			InviteToRegister:    true,
		},
	}

	resp := NewTransactionResponse(txn)
	assert.Equal(t, "67.50", resp.Amount)
	assert.Equal(t, "unregistered_invoice", resp.Scenario)
	assert.Equal(t, "invoice", *resp.PaymentMethod)
	if assert.NotNil(t, resp.Invoice) {
		assert.Equal(t, "35.00", resp.Invoice.BaseRate)
		assert.Equal(t, "1.5", resp.Invoice.SurchargeMultiplier)
		assert.Equal(t, "15.00", resp.Invoice.Penalty)
		assert.Equal(t, "2026-03-16T08:00:00Z", resp.Invoice.DueAt)
	}
}

func TestNewTransactionListResponse_Pages(t *testing.T) {
	resp := NewTransactionListResponse(nil, 41, 1, 20)
	assert.Equal(t, 3, resp.TotalPages)
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
}
