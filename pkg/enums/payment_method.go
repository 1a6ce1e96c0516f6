package enums

import "strings"

// PaymentMethod describes how a sale was settled at the register.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodNonCash PaymentMethod = "non-cash"
	PaymentMethodSplit   PaymentMethod = "split"
)

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsCash reports whether the method settles into the drawer.
func (p PaymentMethod) IsCash() bool {
	return p == PaymentMethodCash
}

// IsSplit reports whether the sale was settled by several methods.
func (p PaymentMethod) IsSplit() bool {
	return p == PaymentMethodSplit
}

// ParsePaymentMethod normalizes raw input. Anything that is neither cash nor
// split (qris, debit, transfer, ...) is routed as non-cash.
func ParsePaymentMethod(value string) PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(PaymentMethodCash):
		return PaymentMethodCash
	case string(PaymentMethodSplit):
		return PaymentMethodSplit
	default:
		return PaymentMethodNonCash
	}
}
