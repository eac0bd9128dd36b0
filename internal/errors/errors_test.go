package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("dial tcp: connection refused")

	// When: wrapping with SearchError
	se := New(ErrCodeStoreUnavailable, "open search.db", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, se)
	assert.Equal(t, originalErr, errors.Unwrap(se))
	assert.True(t, errors.Is(se, originalErr))
}

func TestSearchError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigInvalid, "bad provider", "[ERR_102_CONFIG_INVALID] bad provider"},
		{"store", ErrCodeStoreUnavailable, "db closed", "[ERR_201_STORE_UNAVAILABLE] db closed"},
		{"quota", ErrCodeQuotaExceeded, "cooling down", "[ERR_303_QUOTA_EXCEEDED] cooling down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSearchError_Is_MatchesSentinelByCode(t *testing.T) {
	// Given: a quota error wrapped by fmt
	err := fmt.Errorf("embed batch: %w", New(ErrCodeQuotaExceeded, "429 from provider", nil))

	// Then: it matches the sentinel but not other codes
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestSearchError_WithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeProviderUnavailable, "remote provider not configured", nil).
		WithDetail("provider", "remote").
		WithSuggestion("set MAILSEARCH_REMOTE_API_KEY")

	assert.Equal(t, "remote", err.Details["provider"])
	assert.Equal(t, "set MAILSEARCH_REMOTE_API_KEY", err.Suggestion)
}

func TestSearchError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStoreUnavailable, CategoryStore},
		{ErrCodeQuotaExceeded, CategoryProvider},
		{ErrCodeInvalidResponse, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, "x", nil).Category)
		})
	}
}

func TestSearchError_RetryableFromCode(t *testing.T) {
	assert.True(t, New(ErrCodeRateLimited, "x", nil).Retryable)
	assert.True(t, New(ErrCodeProviderTimeout, "x", nil).Retryable)
	assert.False(t, New(ErrCodeQuotaExceeded, "x", nil).Retryable)
	assert.False(t, New(ErrCodeInvalidResponse, "x", nil).Retryable)
	assert.False(t, New(ErrCodeProviderUnavailable, "x", nil).Retryable)
}

func TestSearchError_SeverityFromCode(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeStoreLocked, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeQuotaExceeded, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeRateLimited, "x", nil).Severity)
	assert.Equal(t, SeverityError, New(ErrCodeStoreUnavailable, "x", nil).Severity)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_UsesErrorMessage(t *testing.T) {
	se := Wrap(ErrCodeStoreUnavailable, errors.New("database is locked"))

	assert.Equal(t, "database is locked", se.Message)
	assert.Equal(t, ErrCodeStoreUnavailable, se.Code)
}

func TestHelpers_ReadThroughWrappedChains(t *testing.T) {
	// Given: a structured error wrapped twice
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", StoreError("closed", nil)))

	// Then: helpers find it
	assert.Equal(t, ErrCodeStoreUnavailable, GetCode(err))
	assert.Equal(t, CategoryStore, GetCategory(err))
	assert.False(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
