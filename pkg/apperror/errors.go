package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses and queue
// acknowledgement decisions.
type AppError struct {
	Code       string `json:"errorCode"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Transient  bool   `json:"-"` // eligible for queue redelivery
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func transient(e *AppError) *AppError {
	e.Transient = true
	return e
}

// Error codes. Kept as constants so callers can switch on them.
const (
	CodeMissingIdentity  = "VAL_001"
	CodeUnknownTollPoint = "VAL_002"
	CodeInvalidTimestamp = "VAL_003"
	CodeStaleEvent       = "VAL_004"
	CodeFutureEvent      = "VAL_005"
	CodeMalformedPlate   = "VAL_006"
	CodeMalformedTagID   = "VAL_007"
	CodeInvalidRequest   = "VAL_008"
	CodePayloadTooLarge  = "VAL_009"

	CodeTagUnresolved    = "RES_001"
	CodeUnknownAccount   = "RES_002"
	CodeTagPlateMismatch = "RES_003"

	CodeInsufficientFunds = "PAY_001"
	CodeNotFound          = "PAY_004"

	CodeInvalidStation    = "SEC_001"
	CodeInvalidSignature  = "SEC_002"
	CodeTimestampExpired  = "SEC_003"
	CodeNonceUsed         = "SEC_004"
	CodeInvalidToken      = "AUTH_003"
	CodeInsufficientScope = "AUTH_004"

	CodeRateLimited = "RATE_001"

	CodePersistence         = "SYS_001"
	CodeConcurrencyConflict = "SYS_002"
	CodeNotification        = "SYS_003"
	CodeQueue               = "SYS_004"
)

// ---- Validation (VAL) ----

func ErrMissingIdentity() *AppError {
	return New(CodeMissingIdentity, "Event must carry a plate or a tag id", http.StatusBadRequest)
}

func ErrUnknownTollPoint(id string) *AppError {
	return New(CodeUnknownTollPoint, fmt.Sprintf("Unknown toll point %q", id), http.StatusBadRequest)
}

func ErrInvalidTimestamp(err error) *AppError {
	return Wrap(CodeInvalidTimestamp, "Timestamp is not a valid ISO-8601 instant", http.StatusBadRequest, err)
}

func ErrStaleEvent() *AppError {
	return New(CodeStaleEvent, "Event is older than the accepted window", http.StatusBadRequest)
}

func ErrFutureEvent() *AppError {
	return New(CodeFutureEvent, "Event timestamp is in the future", http.StatusBadRequest)
}

func ErrMalformedPlate() *AppError {
	return New(CodeMalformedPlate, "Invalid plate format. Expected: P-123ABC", http.StatusBadRequest)
}

func ErrMalformedTagID() *AppError {
	return New(CodeMalformedTagID, "Invalid tag id format. Expected: TAG-001", http.StatusBadRequest)
}

// Validation returns a request-shape validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- Resolution (RES) ----

func ErrTagUnresolved(tagID string) *AppError {
	return New(CodeTagUnresolved, fmt.Sprintf("Tag %s does not resolve to an active account", tagID), http.StatusUnprocessableEntity)
}

func ErrUnknownAccount(plate string) *AppError {
	return New(CodeUnknownAccount, fmt.Sprintf("No account for plate %s", plate), http.StatusUnprocessableEntity)
}

func ErrTagPlateMismatch() *AppError {
	return New(CodeTagPlateMismatch, "Tag is linked to a different plate", http.StatusUnprocessableEntity)
}

// ---- Payment (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Security & Authentication (SEC / AUTH) ----

func ErrInvalidStation() *AppError {
	return New(CodeInvalidStation, "Unknown toll station", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New(CodeTimestampExpired, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInsufficientScope(scope string) *AppError {
	return New(CodeInsufficientScope, fmt.Sprintf("Token lacks scope %q", scope), http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrPersistence marks a store failure; the event is redelivered.
func ErrPersistence(err error) *AppError {
	return transient(Wrap(CodePersistence, "Store unavailable", http.StatusServiceUnavailable, err))
}

func ErrConcurrencyConflict(err error) *AppError {
	return transient(Wrap(CodeConcurrencyConflict, "Balance changed concurrently, retries exhausted", http.StatusServiceUnavailable, err))
}

func ErrNotification(err error) *AppError {
	return Wrap(CodeNotification, "Notification delivery failed", http.StatusBadGateway, err)
}

func ErrQueue(err error) *AppError {
	return transient(Wrap(CodeQueue, "Event queue unavailable", http.StatusServiceUnavailable, err))
}

// InternalError wraps an unexpected internal error.
func InternalError(err error) *AppError {
	return Wrap(CodePersistence, "Internal server error", http.StatusInternalServerError, err)
}

// IsTransient reports whether err should leave the event for redelivery.
// Errors that are not AppErrors are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Transient
	}
	return true
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
