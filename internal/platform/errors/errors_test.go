package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindFetch, "fetch", "upstream request failed",
				errors.New("connection refused")),
			contains: []string{"[fetch:fetch]", "upstream request failed", "connection refused"},
		},
		{
			name:     "error without cause",
			err:      New(KindValidation, "validate", "Invalid URL format"),
			contains: []string{"[validation:validate]", "Invalid URL format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindUpload, "put", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsInnermostKind(t *testing.T) {
	inner := New(KindCompression, "decode", "unsupported image")
	outer := Wrap(KindDomain, "process", "pipeline failed", fmt.Errorf("stage: %w", inner))

	if outer.Kind != KindCompression {
		t.Fatalf("expected compression kind, got %s", outer.Kind)
	}
}

func TestWrap_NilCause(t *testing.T) {
	if got := Wrap(KindStorage, "put", "ignored", nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindConfig, "test", "message"),
			kind:     KindConfig,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindStorage, "test", "message", errors.New("cause"))),
			kind:     KindStorage,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(KindValidation, "v", "URL is required"), http.StatusBadRequest},
		{New(KindFetch, "f", "boom"), http.StatusInternalServerError},
		{New(KindCompression, "c", "boom"), http.StatusInternalServerError},
		{New(KindUpload, "u", "boom"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(New(KindValidation, "v", "Valid URL")); got != "Valid URL" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
