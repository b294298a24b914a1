// Package errors defines the coded errors postapi returns to providers and
// records in outcomes. The code is what callers match on; the message may be
// replaced per occurrence with WithMessage.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrUnauthorized       = NewError("UNAUTHORIZED", "invalid provider credentials", http.StatusUnauthorized)
	ErrServiceUnavailable = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
	ErrRateLimited        = NewError("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests)

	// ErrRejectedEnqueue is returned when a submission cannot be queued, e.g. without a uuid.
	ErrRejectedEnqueue = NewError("REJECTED_ENQUEUE", "submission rejected", http.StatusBadRequest)
	// ErrUnsupportedBundle is returned when no processor is registered for a bundle.
	ErrUnsupportedBundle = NewError("UNSUPPORTED_BUNDLE", "unsupported bundle", http.StatusNotFound)
	// ErrPayloadTooLarge is returned when a submission body exceeds the intake limit.
	ErrPayloadTooLarge = NewError("PAYLOAD_TOO_LARGE", "submission body too large", http.StatusRequestEntityTooLarge)
	// ErrProcessing is returned by processors for any per-item failure.
	ErrProcessing = NewError("PROCESSING_ERROR", "processing failed", http.StatusUnprocessableEntity)
)

// Codes that describe a bad request rather than a broken dependency. Retrying
// them cannot help.
var permanentCodes = map[string]bool{
	ErrValidation.Code:        true,
	ErrUnauthorized.Code:      true,
	ErrRejectedEnqueue.Code:   true,
	ErrUnsupportedBundle.Code: true,
	ErrPayloadTooLarge.Code:   true,
	ErrProcessing.Code:        true,
}

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error

	// nil means decided by code.
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func (e *Error) text() string {
	if msg, ok := e.Details["message"].(string); ok && msg != "" {
		return msg
	}
	return e.Message
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.text(), e.Cause)
	}
	return e.Code + ": " + e.text()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on the code so sentinels survive the copies made by the With* methods.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Retryable reports whether repeating the failed operation may succeed.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	var inner interface{ Retryable() bool }
	if e.Cause != nil && errors.As(e.Cause, &inner) {
		return inner.Retryable()
	}
	return !permanentCodes[e.Code]
}

func (e *Error) clone() *Error {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return &c
}

func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.Cause = cause
	return c
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	c := e.clone()
	c.Details[key] = value
	return c
}

// Permanent returns a copy that is never retried regardless of its code.
func (e *Error) Permanent() *Error {
	c := e.clone()
	no := false
	c.retryable = &no
	return c
}

func HasCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsProcessing(err error) bool {
	return HasCode(err, ErrProcessing.Code)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ToErrorResponse renders err for a client. Errors without a code become
// INTERNAL_ERROR and hide their cause.
func ToErrorResponse(err error) ErrorResponse {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}

	resp := ErrorResponse{Error: appErr.text(), ErrorCode: appErr.Code}
	for k, v := range appErr.Details {
		if k == "message" || k == "stack_trace" {
			continue
		}
		if resp.Details == nil {
			resp.Details = make(map[string]interface{})
		}
		resp.Details[k] = v
	}
	return resp
}
