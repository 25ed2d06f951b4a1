package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound   = new(ErrCodeNotFound, "resource not found")
	ErrValidation = new(ErrCodeValidation, "validation error")
	// ErrAlreadyProcessed marks duplicate billing operations (payment
	// confirmations, invoice generation). Callers should treat it as
	// success-adjacent: the intended state already exists.
	ErrAlreadyProcessed = new(ErrCodeAlreadyProcessed, "operation already processed")
	// ErrNotConfigured marks operations that require gateway identifiers
	// which were never set up for the subscription
	ErrNotConfigured = new(ErrCodeNotConfigured, "gateway not configured")
	// ErrPaymentNotConfirmed marks confirmations where the gateway reports
	// the transaction has not (yet) succeeded; retryable once the gateway
	// state changes
	ErrPaymentNotConfirmed = new(ErrCodePaymentNotConfirmed, "payment not confirmed by gateway")
	// ErrGatewayUnavailable marks transient I/O failures talking to the
	// payment gateway; safe to retry with backoff
	ErrGatewayUnavailable = new(ErrCodeGatewayUnavailable, "payment gateway unavailable")
	ErrInvalidOperation   = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied   = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase           = new(ErrCodeDatabase, "database error")
	ErrInternal           = new(ErrCodeInternal, "internal error")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:            http.StatusNotFound,
		ErrValidation:          http.StatusBadRequest,
		ErrAlreadyProcessed:    http.StatusConflict,
		ErrNotConfigured:       http.StatusBadRequest,
		ErrPaymentNotConfirmed: http.StatusBadRequest,
		ErrGatewayUnavailable:  http.StatusBadGateway,
		ErrInvalidOperation:    http.StatusBadRequest,
		ErrPermissionDenied:    http.StatusForbidden,
		ErrDatabase:            http.StatusInternalServerError,
		ErrInternal:            http.StatusInternalServerError,
	}
)

const (
	ErrCodeNotFound            = "not_found"
	ErrCodeValidation          = "validation_error"
	ErrCodeAlreadyProcessed    = "already_processed"
	ErrCodeNotConfigured       = "not_configured"
	ErrCodePaymentNotConfirmed = "payment_not_confirmed"
	ErrCodeGatewayUnavailable  = "gateway_unavailable"
	ErrCodeInvalidOperation    = "invalid_operation"
	ErrCodePermissionDenied    = "permission_denied"
	ErrCodeDatabase            = "database_error"
	ErrCodeInternal            = "internal_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// new creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAlreadyProcessed checks if an error is a duplicate operation rejection
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsNotConfigured checks if an error is a missing gateway configuration error
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsPaymentNotConfirmed checks if an error is an unconfirmed payment rejection
func IsPaymentNotConfirmed(err error) bool {
	return errors.Is(err, ErrPaymentNotConfirmed)
}

// IsGatewayUnavailable checks if an error is a transient gateway failure
func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsDatabase checks if an error is a database error
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
