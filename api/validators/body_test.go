package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
)

type movementBody struct {
	Type   string          `json:"type" validate:"required,oneof=in out"`
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt0,money"`
	Tip    decimal.Decimal `json:"tip" validate:"decimal_gte0,money"`
}

func TestDecodeJSONBodyValidatesDecimals(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"type":"out","amount":"0","tip":-1}`))
	var body movementBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["amount"] != "must be greater than zero" || details["tip"] != "must not be negative" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsSubCentAmounts(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"type":"in","amount":"10.005","tip":"0.50"}`))
	var body movementBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["amount"] != "must have at most 2 decimal places" {
		t.Fatalf("unexpected details %v", details)
	}
	if _, ok := details["tip"]; ok {
		t.Fatalf("tip with two places must pass, got %v", details)
	}
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"type":"in","amount":"2500.25","tip":0}`))
	var body movementBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !body.Amount.Equal(decimal.RequireFromString("2500.25")) {
		t.Fatalf("unexpected amount %s", body.Amount)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"type":"in","amount":1,"extra":true}`))
	var body movementBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryIntBoundsAboveMax(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 50, 1, 200); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	value, err := ParseQueryInt(httptest.NewRequest("GET", "/", nil), "limit", 50, 1, 200)
	if err != nil || value != 50 {
		t.Fatalf("expected default 50, got %d (%v)", value, err)
	}
}
