// internal/common/errors/handler.go
package errors

import (
	goerrors "errors"
	"time"
)

// Logger is the narrow logging surface the handler needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns arbitrary errors into a uniform failure disposition:
// normalize to StandardError, consult the per-code retry budget, log once.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Normalize ensures we always have a StandardError. Errors that are not
// StandardErrors are treated as internal and non-retryable.
func (h *ErrorHandler) Normalize(err error) *StandardError {
	var stdErr *StandardError
	if goerrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ShouldRetry reports whether another attempt is within the error code's
// retry budget. attempt counts the tries already made, starting at 1.
func (h *ErrorHandler) ShouldRetry(err error, attempt int) bool {
	stdErr := h.Normalize(err)
	budget := GetRetryCount(stdErr.Code)
	if attempt > budget {
		return false
	}

	h.logger.Warn("retryable failure", map[string]interface{}{
		"code":     string(stdErr.Code),
		"category": GetErrorCategory(stdErr.Code),
		"attempt":  attempt,
		"budget":   budget,
	})
	return true
}

// LogTerminal records that an error exhausted its disposition and the
// operation is giving up.
func (h *ErrorHandler) LogTerminal(op string, err error) {
	stdErr := h.Normalize(err)
	h.logger.Error("operation failed terminally", map[string]interface{}{
		"operation": op,
		"code":      string(stdErr.Code),
		"category":  GetErrorCategory(stdErr.Code),
		"details":   stdErr.Details,
	})
}
