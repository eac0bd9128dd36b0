// Package errors provides structured error handling for mailsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store and IO errors
//   - 3XX: Embedding provider errors
//   - 4XX: Validation and response errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates lexical/vector store and file errors.
	CategoryStore Category = "STORE"
	// CategoryProvider indicates embedding provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates invalid input or malformed responses.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeFileNotFound     = "ERR_202_FILE_NOT_FOUND"
	ErrCodeDocumentNotFound = "ERR_203_DOCUMENT_NOT_FOUND"
	ErrCodeStoreLocked      = "ERR_204_STORE_LOCKED"

	// Provider errors (300-399)
	ErrCodeProviderUnavailable = "ERR_301_PROVIDER_UNAVAILABLE"
	ErrCodeRateLimited         = "ERR_302_RATE_LIMITED"
	ErrCodeQuotaExceeded       = "ERR_303_QUOTA_EXCEEDED"
	ErrCodeProviderTimeout     = "ERR_304_PROVIDER_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidResponse   = "ERR_401_INVALID_RESPONSE"
	ErrCodeInvalidInput      = "ERR_402_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"
	ErrCodeMessageMalformed  = "ERR_404_MESSAGE_MALFORMED"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_503_INDEX_FAILED"
)

// Sentinels for errors.Is matching. Is compares codes only, so these match
// any error carrying the same code.
var (
	ErrProviderUnavailable = New(ErrCodeProviderUnavailable, "embedding provider unavailable", nil)
	ErrRateLimited         = New(ErrCodeRateLimited, "embedding provider rate limited", nil)
	ErrQuotaExceeded       = New(ErrCodeQuotaExceeded, "embedding provider quota exceeded", nil)
	ErrInvalidResponse     = New(ErrCodeInvalidResponse, "invalid embedding provider response", nil)
	ErrStoreUnavailable    = New(ErrCodeStoreUnavailable, "search store unavailable", nil)
	ErrDocumentNotFound    = New(ErrCodeDocumentNotFound, "document not found", nil)
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "301" from "ERR_301_PROVIDER_UNAVAILABLE")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreLocked:
		return SeverityFatal
	case ErrCodeQuotaExceeded:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Quota errors are not retryable: the quota governor owns their recovery.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRateLimited, ErrCodeProviderTimeout:
		return true
	default:
		return false
	}
}
