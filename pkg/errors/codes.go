package errors

import (
	"net/http"
	"time"
)

// Code is the stable machine-readable error identifier returned to tills.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInvalidState Code = "INVALID_STATE"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeWrite        Code = "WRITE_ERROR"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
	// CodeNotification marks notifier failures. They are logged and never returned to callers.
	CodeNotification Code = "NOTIFICATION_ERROR"
)

// Metadata is how a code surfaces over HTTP. ExposeMessage lets the error's
// own message replace PublicMessage; RetryAfter is sent on retryable codes.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	RetryAfter     time.Duration
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ExposeMessage: true, DetailsAllowed: true},
	CodeUnauthorized: {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
	CodeForbidden:    {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true},
	CodeNotFound:     {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
	CodeConflict:     {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ExposeMessage: true, DetailsAllowed: true},
	CodeInvalidState: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "operation not allowed in current state", ExposeMessage: true, DetailsAllowed: true},
	CodeIdempotency:  {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", ExposeMessage: true, DetailsAllowed: true},

	// A failed write never left a partial shift behind, so the till may
	// resend the same request.
	CodeWrite:      {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, RetryAfter: 2 * time.Second, PublicMessage: "ledger store write failed"},
	CodeDependency: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, RetryAfter: 5 * time.Second, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	CodeInternal:   {HTTPStatus: http.StatusInternalServerError, Retryable: true, RetryAfter: time.Second, PublicMessage: "internal server error"},

	CodeNotification: {HTTPStatus: http.StatusBadGateway, PublicMessage: "notification failed"},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}
