package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestHarvestError_Error(t *testing.T) {
	err := New(ErrCategoryParse, CodeUnknownRegion, "unexpected region code 7")
	expected := "[PARSE:UNKNOWN_REGION] unexpected region code 7"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestHarvestError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryTransport, CodeRequestFailed, "post failed", cause)
	expected := "[TRANSPORT:REQUEST_FAILED] post failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestHarvestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStore, CodeWriteFailed, "insert", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestHarvestError_Is(t *testing.T) {
	err1 := New(ErrCategoryTree, CodeKindMismatch, "first")
	err2 := New(ErrCategoryTree, CodeKindMismatch, "second")
	err3 := New(ErrCategoryTree, CodeLeafConflict, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
	wrapped := fmt.Errorf("stage totals: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryTransport, CodeRequestFailed, true},
		{ErrCategoryTransport, CodeBadStatus, true},
		{ErrCategoryTransport, CodeTimeout, true},
		{ErrCategoryParse, CodeUnknownRegion, false},
		{ErrCategoryParse, CodeBadNumber, false},
		{ErrCategoryTree, CodeKindMismatch, false},
		{ErrCategoryConfig, CodeInvalidValue, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := Newf(ErrCategoryConfig, CodeUnknownLabel, "unknown age band %q", "90+")
	if GetCategory(err) != ErrCategoryConfig {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryConfig)
	}
	if GetCode(err) != CodeUnknownLabel {
		t.Errorf("got %q, want %q", GetCode(err), CodeUnknownLabel)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-HarvestError should return empty category")
	}
}

func TestWithDetails(t *testing.T) {
	base := New(ErrCategorySink, CodeWriteFailed, "upload")
	detailed := base.WithDetails(map[string]interface{}{"bucket": "b"})
	if base.Details != nil {
		t.Error("WithDetails must not mutate the receiver")
	}
	if detailed.Details["bucket"] != "b" {
		t.Errorf("details not carried: %v", detailed.Details)
	}
}
