package shifts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
)

// OpenShiftInput captures what a cashier declares when opening a shift.
type OpenShiftInput struct {
	CashierName string
	CashierID   string
	StoreID     string
	InitialCash decimal.Decimal
}

// CashMovementInput describes a manual drawer movement. Category falls back
// to "General" and Cashier to the shift's cashier when left blank.
type CashMovementInput struct {
	Type     enums.CashMovementType
	Amount   decimal.Decimal
	Reason   string
	Category string
	Cashier  string
}

// SplitPart is one leg of a split payment.
type SplitPart struct {
	Method enums.PaymentMethod
	Amount decimal.Decimal
}

// SaleInput is one completed sale folded into the shift totals. SaleID is
// optional; when present a repeated id is ignored.
type SaleInput struct {
	SaleID        string
	Amount        decimal.Decimal
	PaymentMethod enums.PaymentMethod
	Discount      decimal.Decimal
	Split         []SplitPart
}

// EndShiftInput is the cashier's declared count at close.
type EndShiftInput struct {
	FinalCash    decimal.Decimal
	FinalNonCash decimal.Decimal
	Notes        string
}

// SaleResult reports the shift after a sale was applied.
type SaleResult struct {
	Shift     *models.Shift
	Duplicate bool
}

// MovementResult bundles the stored movement with the updated shift.
type MovementResult struct {
	Movement *models.CashMovement
	Shift    *models.Shift
}

// TotalsDelta is an increment applied atomically to a shift's running totals.
type TotalsDelta struct {
	Transactions int64
	Sales        decimal.Decimal
	CashSales    decimal.Decimal
	NonCashSales decimal.Decimal
	Discount     decimal.Decimal
	CashIn       decimal.Decimal
	CashOut      decimal.Decimal
}

// IsZero reports whether applying the delta would change nothing.
func (d TotalsDelta) IsZero() bool {
	return d.Transactions == 0 &&
		d.Sales.IsZero() &&
		d.CashSales.IsZero() &&
		d.NonCashSales.IsZero() &&
		d.Discount.IsZero() &&
		d.CashIn.IsZero() &&
		d.CashOut.IsZero()
}

// ApplyTo adds the delta to the shift's running totals in place.
func (d TotalsDelta) ApplyTo(shift *models.Shift) {
	shift.TransactionsCount += d.Transactions
	shift.TotalSales = shift.TotalSales.Add(d.Sales)
	shift.TotalCashSales = shift.TotalCashSales.Add(d.CashSales)
	shift.TotalNonCashSales = shift.TotalNonCashSales.Add(d.NonCashSales)
	shift.TotalDiscount = shift.TotalDiscount.Add(d.Discount)
	shift.TotalCashIn = shift.TotalCashIn.Add(d.CashIn)
	shift.TotalCashOut = shift.TotalCashOut.Add(d.CashOut)
}

// CloseFields are written when a shift leaves the active state. Reconciliation
// is nil for administrative terminations.
type CloseFields struct {
	EndTime           time.Time
	Notes             string
	TerminatedByAdmin bool
	Reconciliation    *Reconciliation
}

// Reconciliation is the declared-versus-expected comparison made at close.
// Positive differences are overages, negative are shortages.
type Reconciliation struct {
	ExpectedCash      decimal.Decimal
	FinalCash         decimal.Decimal
	CashDifference    decimal.Decimal
	ExpectedNonCash   decimal.Decimal
	FinalNonCash      decimal.Decimal
	NonCashDifference decimal.Decimal
}
