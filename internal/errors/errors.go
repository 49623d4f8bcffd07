// Package errors provides the structured error type used across the harvester.
// Every error carries a category, a code and a retryable flag so the fetch policy
// can decide between retrying, recording and giving up.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the component that raised them.
type ErrorCategory string

const (
	ErrCategoryTransport ErrorCategory = "TRANSPORT"
	ErrCategoryParse     ErrorCategory = "PARSE"
	ErrCategoryTree      ErrorCategory = "TREE"
	ErrCategoryConfig    ErrorCategory = "CONFIG"
	ErrCategoryStore     ErrorCategory = "STORE"
	ErrCategorySink      ErrorCategory = "SINK"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Transport codes
	CodeRequestFailed = "REQUEST_FAILED"
	CodeBadStatus     = "BAD_STATUS"
	CodeTimeout       = "TIMEOUT"

	// Parse codes
	CodeUnknownRegion = "UNKNOWN_REGION"
	CodeBadNumber     = "BAD_NUMBER"
	CodeDuplicateRow  = "DUPLICATE_ROW"

	// Tree codes
	CodeKindMismatch = "KIND_MISMATCH"
	CodeLeafConflict = "LEAF_CONFLICT"
	CodeEmptyPath    = "EMPTY_PATH"

	// Config codes
	CodeInvalidValue = "INVALID_VALUE"
	CodeUnknownLabel = "UNKNOWN_LABEL"

	// Store and sink codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeNotFound    = "NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// HarvestError is the structured error type used throughout the system.
type HarvestError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *HarvestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *HarvestError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *HarvestError) Is(target error) bool {
	var t *HarvestError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new HarvestError.
func New(category ErrorCategory, code, message string) *HarvestError {
	return &HarvestError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new HarvestError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *HarvestError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new HarvestError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *HarvestError {
	return &HarvestError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *HarvestError) WithDetails(details map[string]interface{}) *HarvestError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}

// GetCategory returns the category of a HarvestError, or "" for other errors.
func GetCategory(err error) ErrorCategory {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Category
	}
	return ""
}

// GetCode returns the code of a HarvestError, or "" for other errors.
func GetCode(err error) string {
	var he *HarvestError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// isRetryable determines retryability from category and code.
// Only transport failures are worth another attempt; a malformed body
// parses the same way every time.
func isRetryable(category ErrorCategory, code string) bool {
	if category != ErrCategoryTransport {
		return false
	}
	switch code {
	case CodeRequestFailed, CodeBadStatus, CodeTimeout:
		return true
	}
	return false
}
