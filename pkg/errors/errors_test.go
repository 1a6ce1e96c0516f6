package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code       Code
		status     int
		expose     bool
		details    bool
		retryAfter time.Duration
	}{
		{CodeValidation, http.StatusBadRequest, true, true, 0},
		{CodeUnauthorized, http.StatusUnauthorized, true, false, 0},
		{CodeForbidden, http.StatusForbidden, true, false, 0},
		{CodeNotFound, http.StatusNotFound, true, false, 0},
		{CodeConflict, http.StatusConflict, true, true, 0},
		{CodeInvalidState, http.StatusUnprocessableEntity, true, true, 0},
		{CodeIdempotency, http.StatusConflict, true, true, 0},
		{CodeWrite, http.StatusServiceUnavailable, false, false, 2 * time.Second},
		{CodeDependency, http.StatusServiceUnavailable, false, true, 5 * time.Second},
		{CodeInternal, http.StatusInternalServerError, false, false, time.Second},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.expose, meta.ExposeMessage)
			assert.Equal(t, tt.details, meta.DetailsAllowed)
			assert.Equal(t, tt.retryAfter, meta.RetryAfter)
			assert.Equal(t, tt.retryAfter > 0, meta.Retryable, "retryable codes carry a Retry-After")
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "amount must be positive")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "amount must be positive" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "amount"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeWrite, cause, "insert shift")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeWrite {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	assert.Equal(t, "WRITE_ERROR: insert shift: connection reset", wrapped.Error())
	assert.Equal(t, "NOT_FOUND: shift", Wrap(CodeNotFound, nil, "shift").Error())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
}

func TestCodeOfWalksChain(t *testing.T) {
	err := fmt.Errorf("close shift: %w", New(CodeInvalidState, "shift already closed"))
	if CodeOf(err) != CodeInvalidState {
		t.Fatalf("expected invalid state, got %s", CodeOf(err))
	}
	if !IsCode(err, CodeInvalidState) {
		t.Fatalf("IsCode should match wrapped code")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should default to internal")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error should never match")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}
