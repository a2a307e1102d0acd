package orders

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"pizzeria-platform/internal/ratelimit"
)

// Error codes surfaced to clients.
const (
	CodeAuthFailed        = "auth_failed"
	CodeTenantUnresolved  = "tenant_unresolved"
	CodeMembershipDenied  = "membership_denied"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeValidationError   = "validation_error"
	CodeOrderError        = "order_error"
	CodePaymentError      = "payment_error"
)

// Error is a request failure with a machine-readable code and the HTTP
// status it maps to. Rate-limit rejections additionally carry retry metadata.
type Error struct {
	Code       string
	Message    string
	Status     int
	RetryAfter time.Duration
	ResetAt    time.Time
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// AsError extracts an *Error from err, if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func errAuth(cause error) *Error {
	return &Error{Code: CodeAuthFailed, Message: "authentication required", Status: http.StatusUnauthorized, cause: cause}
}

func errTenantUnresolved() *Error {
	return &Error{Code: CodeTenantUnresolved, Message: "no organization could be resolved for this request", Status: http.StatusBadRequest}
}

func errMembership(message string) *Error {
	return &Error{Code: CodeMembershipDenied, Message: message, Status: http.StatusForbidden}
}

func errRateLimited(decision ratelimit.Decision, now time.Time) *Error {
	return &Error{
		Code:       CodeRateLimitExceeded,
		Message:    "too many orders, slow down",
		Status:     http.StatusTooManyRequests,
		RetryAfter: decision.RetryAfter(now),
		ResetAt:    decision.ResetAt,
	}
}

func errValidation(message string) *Error {
	return &Error{Code: CodeValidationError, Message: message, Status: http.StatusBadRequest}
}

func errOrder(cause error) *Error {
	return &Error{Code: CodeOrderError, Message: "failed to process order", Status: http.StatusInternalServerError, cause: cause}
}

func errPayment(message string, cause error) *Error {
	return &Error{Code: CodePaymentError, Message: message, Status: http.StatusPaymentRequired, cause: cause}
}
