package shifts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
)

// ExpectedCash is the drawer balance implied by the running totals:
// initial float plus cash sales and cash-ins, minus cash-outs. It holds at
// any point of an active shift, not only at close.
func ExpectedCash(shift *models.Shift) decimal.Decimal {
	if shift == nil {
		return decimal.Zero
	}
	return shift.InitialCash.
		Add(shift.TotalCashSales).
		Add(shift.TotalCashIn).
		Sub(shift.TotalCashOut)
}

// Reconcile compares the declared counts against the running totals.
func Reconcile(shift *models.Shift, finalCash, finalNonCash decimal.Decimal) Reconciliation {
	expectedCash := ExpectedCash(shift)
	expectedNonCash := decimal.Zero
	if shift != nil {
		expectedNonCash = shift.TotalNonCashSales
	}
	return Reconciliation{
		ExpectedCash:      expectedCash,
		FinalCash:         finalCash,
		CashDifference:    finalCash.Sub(expectedCash),
		ExpectedNonCash:   expectedNonCash,
		FinalNonCash:      finalNonCash,
		NonCashDifference: finalNonCash.Sub(expectedNonCash),
	}
}

// SaleDelta routes a sale into the running totals. Split parts are routed by
// their own method and are not required to add up to the sale amount.
func SaleDelta(in SaleInput) (TotalsDelta, error) {
	if in.Amount.IsNegative() {
		return TotalsDelta{}, pkgerrors.New(pkgerrors.CodeValidation, "sale amount must not be negative")
	}
	if in.Discount.IsNegative() {
		return TotalsDelta{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}
	if err := checkMoney("sale amount", in.Amount); err != nil {
		return TotalsDelta{}, err
	}
	if err := checkMoney("discount", in.Discount); err != nil {
		return TotalsDelta{}, err
	}

	delta := TotalsDelta{
		Transactions: 1,
		Sales:        in.Amount,
		CashSales:    decimal.Zero,
		NonCashSales: decimal.Zero,
		Discount:     decimal.Zero,
	}
	if in.Discount.IsPositive() {
		delta.Discount = in.Discount
	}

	switch {
	case in.PaymentMethod.IsSplit():
		if len(in.Split) == 0 {
			return TotalsDelta{}, pkgerrors.New(pkgerrors.CodeValidation, "split payment requires at least one part")
		}
		for i, part := range in.Split {
			if part.Amount.IsNegative() {
				return TotalsDelta{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("split part %d amount must not be negative", i+1))
			}
			if err := checkMoney(fmt.Sprintf("split part %d amount", i+1), part.Amount); err != nil {
				return TotalsDelta{}, err
			}
			if part.Method.IsSplit() {
				return TotalsDelta{}, pkgerrors.New(pkgerrors.CodeValidation, "split parts cannot themselves be split")
			}
			if part.Method.IsCash() {
				delta.CashSales = delta.CashSales.Add(part.Amount)
			} else {
				delta.NonCashSales = delta.NonCashSales.Add(part.Amount)
			}
		}
	case in.PaymentMethod.IsCash():
		delta.CashSales = in.Amount
	default:
		delta.NonCashSales = in.Amount
	}
	return delta, nil
}

// checkMoney rejects amounts the money columns would silently round.
func checkMoney(field string, amount decimal.Decimal) error {
	if models.FitsMoneyScale(amount) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must have at most %d decimal places", field, models.MoneyScale)).
		WithDetails(map[string]any{"field": field, "value": amount.String()})
}

// MovementDelta returns the totals increment for a cash movement.
func MovementDelta(kind enums.CashMovementType, amount decimal.Decimal) TotalsDelta {
	if kind == enums.CashMovementIn {
		return TotalsDelta{CashIn: amount}
	}
	return TotalsDelta{CashOut: amount}
}

// LedgerDescription labels a mirrored movement with the shift it came from,
// e.g. "Beli galon (Shift #1A2B3C4D)".
func LedgerDescription(reason string, shiftID uuid.UUID) string {
	return fmt.Sprintf("%s (Shift #%s)", strings.TrimSpace(reason), models.ShortID(shiftID))
}

// LedgerCategory swaps the generic movement category for the cashier label
// used in the general ledger.
func LedgerCategory(kind enums.CashMovementType, category string) string {
	trimmed := strings.TrimSpace(category)
	if trimmed != "" && trimmed != enums.DefaultCashMovementCategory {
		return trimmed
	}
	if kind == enums.CashMovementIn {
		return enums.LedgerCategoryCashierDeposit
	}
	return enums.LedgerCategoryCashierOperations
}

// PickActive chooses the shift to expose when a store has several active rows:
// the latest start time, ties broken by id. The others are orphans.
func PickActive(candidates []models.Shift) (*models.Shift, []models.Shift) {
	if len(candidates) == 0 {
		return nil, nil
	}
	sorted := make([]models.Shift, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.After(sorted[j].StartTime)
		}
		return sorted[i].ID.String() > sorted[j].ID.String()
	})
	picked := sorted[0]
	return &picked, sorted[1:]
}
