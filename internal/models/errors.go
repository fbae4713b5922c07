package models

import "errors"

// Application-wide standard errors
var (
	// Common resource errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Input / validation errors
	ErrInvalidInput = errors.New("invalid input data")
	ErrNoSuchStep   = errors.New("unknown wizard step")

	// Single-flight guards (второй конкурентный вызов отбрасывается, не ставится в очередь)
	ErrRecalcInFlight = errors.New("quote recalculation already in flight")
	ErrSaveInFlight   = errors.New("draft save already in flight")
	ErrSubmitInFlight = errors.New("submission already in flight")

	// Quote lifecycle
	ErrQuoteClean = errors.New("quote is up to date, nothing to recalculate")

	// Booking lifecycle (заявка отправляется не более одного раза)
	ErrAlreadySubmitted = errors.New("booking request already submitted")

	// Session errors
	ErrSessionNotFound = errors.New("live booking session not found")

	// General server errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)

// Машиночитаемые коды ошибок в HTTP-ответах.
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNoSuchStep       = "NO_SUCH_STEP"
	ErrCodeInFlight         = "OPERATION_IN_FLIGHT"
	ErrCodeQuoteClean       = "QUOTE_UP_TO_DATE"
	ErrCodeAlreadySubmitted = "ALREADY_SUBMITTED"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse - стандартизированный JSON-ответ об ошибке.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
