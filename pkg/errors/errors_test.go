package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesCode(t *testing.T) {
	err := ErrProcessing.WithMessage("url %q does not match provider pattern", "http://x").WithCause(fmt.Errorf("boom"))

	assert.True(t, errors.Is(err, ErrProcessing))
	assert.False(t, errors.Is(err, ErrRejectedEnqueue))
	assert.True(t, IsProcessing(fmt.Errorf("wrapped: %w", err)))
	assert.Contains(t, err.Error(), `url "http://x" does not match provider pattern`)
	assert.Contains(t, err.Error(), "caused by: boom")
}

func TestError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrProcessing.WithDetail("uuid", "abc")
	assert.Empty(t, ErrProcessing.Details)
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"processing", ErrProcessing, false},
		{"rejected", ErrRejectedEnqueue, false},
		{"unauthorized", ErrUnauthorized, false},
		{"too large", ErrPayloadTooLarge, false},
		{"internal", ErrInternal, true},
		{"unavailable", ErrServiceUnavailable, true},
		{"permanent internal", ErrInternal.Permanent(), false},
		{"cause decides", ErrInternal.WithCause(ErrValidation), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrRejectedEnqueue))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(ErrUnsupportedBundle))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusTooManyRequests, ToHTTPStatus(ErrRateLimited))
	assert.Equal(t, http.StatusRequestEntityTooLarge, ToHTTPStatus(ErrPayloadTooLarge))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain")))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrUnsupportedBundle.WithMessage("bundle %s is not supported", "blog").WithDetail("bundle", "blog"))

	assert.Equal(t, "bundle blog is not supported", resp.Error)
	assert.Equal(t, "UNSUPPORTED_BUNDLE", resp.ErrorCode)
	assert.Equal(t, map[string]interface{}{"bundle": "blog"}, resp.Details)

	plain := ToErrorResponse(fmt.Errorf("dial tcp: refused"))
	assert.Equal(t, "INTERNAL_ERROR", plain.ErrorCode)
	assert.Equal(t, "internal server error", plain.Error)
	assert.Nil(t, plain.Details)
}

func TestGuard(t *testing.T) {
	err := Guard(func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})

	require.Error(t, err)
	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
	assert.False(t, appErr.Retryable())

	assert.NoError(t, Guard(func() error { return nil }))
}
