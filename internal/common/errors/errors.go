// Package errors provides standardized error handling for the generation pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	ErrCodePlannerUnavailable     ErrorCode = "PLANNER_UNAVAILABLE"
	ErrCodePlannerTimeout         ErrorCode = "PLANNER_TIMEOUT"
	ErrCodePlannerRejected        ErrorCode = "PLANNER_REJECTED"
	ErrCodePlannerResponseInvalid ErrorCode = "PLANNER_RESPONSE_INVALID"

	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable cache error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Export cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlannerUnavailableError creates a retryable planner transport error.
func NewPlannerUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePlannerUnavailable,
		Message:   "Route planner service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlannerTimeoutError creates a retryable planner timeout error.
func NewPlannerTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodePlannerTimeout,
		Message:   "Route planner timeout",
		Details:   "Planner call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlannerRejectedError creates a non-retryable planner rejection error.
func NewPlannerRejectedError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlannerRejected,
		Message:   "Route planner rejected the request",
		Details:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlannerResponseInvalidError creates a non-retryable planner contract error.
func NewPlannerResponseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlannerResponseInvalid,
		Message:   "Route planner response failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidArgumentError creates a non-retryable caller input error.
func NewInvalidArgumentError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidArgument,
		Message:   "Invalid argument",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodePlannerUnavailable:
		return 3 // Retryable technical errors

	case ErrCodeCacheUnavailable,
		ErrCodePlannerTimeout:
		return 2 // Partial retry for timeouts and degraded dependencies

	default:
		return 0 // Contract and input errors: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "PLANNER"):
		return "PLANNER"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
