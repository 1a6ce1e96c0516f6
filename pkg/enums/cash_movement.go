package enums

import "fmt"

// CashMovementType is the direction of a non-sale drawer movement.
type CashMovementType string

const (
	CashMovementIn  CashMovementType = "in"
	CashMovementOut CashMovementType = "out"
)

var validCashMovementTypes = []CashMovementType{
	CashMovementIn,
	CashMovementOut,
}

// String implements fmt.Stringer.
func (c CashMovementType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CashMovementType.
func (c CashMovementType) IsValid() bool {
	for _, candidate := range validCashMovementTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCashMovementType converts raw input into a CashMovementType.
func ParseCashMovementType(value string) (CashMovementType, error) {
	for _, candidate := range validCashMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash movement type %q", value)
}

// DefaultCashMovementCategory is stored when callers leave the category blank.
const DefaultCashMovementCategory = "General"
