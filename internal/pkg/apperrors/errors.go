package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"
	ErrOrderInvalid     ErrorType = "ORDER_INVALID"
	ErrOrderUnfillable  ErrorType = "ORDER_UNFILLABLE"
	ErrZoneRejected     ErrorType = "ZONE_REJECTED"
	ErrSettlementFailed ErrorType = "SETTLEMENT_FAILED"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrReadOnly         ErrorType = "READ_ONLY"
	ErrHalted           ErrorType = "HALTED"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewOrderInvalid(msg string, cause error) *AppError {
	return New(ErrOrderInvalid, msg, cause)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrOrderInvalid:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrZoneRejected, ErrReadOnly:
		return http.StatusForbidden
	case ErrOrderUnfillable, ErrSettlementFailed:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrHalted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrOrderInvalid:
		return "Check order structure, fraction, and signature."
	case ErrOrderUnfillable:
		return "Fetch the order status; the order may be cancelled, filled, or outside its time window."
	case ErrZoneRejected:
		return "The order's zone refused this fill. Check extraData authorization."
	case ErrSettlementFailed:
		return "Check account balances and fulfillment components, then retry."
	case ErrAuthFailed:
		return "Check API keys."
	case ErrHalted:
		return "Settlement is suspended. Wait for an operator to resume."
	default:
		return ""
	}
}
