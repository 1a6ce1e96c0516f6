package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shiftledger/pkg/enums"
)

// ShiftOpenedEvent is emitted when a cashier opens a shift.
type ShiftOpenedEvent struct {
	ShiftID     uuid.UUID       `json:"shift_id"`
	StoreID     string          `json:"store_id"`
	CashierID   string          `json:"cashier_id"`
	CashierName string          `json:"cashier_name"`
	InitialCash decimal.Decimal `json:"initial_cash"`
	StartTime   time.Time       `json:"start_time"`
}

// ShiftClosedEvent carries the reconciliation computed at close.
type ShiftClosedEvent struct {
	ShiftID           uuid.UUID       `json:"shift_id"`
	StoreID           string          `json:"store_id"`
	CashierName       string          `json:"cashier_name"`
	EndTime           time.Time       `json:"end_time"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	TransactionsCount int64           `json:"transactions_count"`
	ExpectedCash      decimal.Decimal `json:"expected_cash"`
	FinalCash         decimal.Decimal `json:"final_cash"`
	CashDifference    decimal.Decimal `json:"cash_difference"`
	ExpectedNonCash   decimal.Decimal `json:"expected_non_cash"`
	FinalNonCash      decimal.Decimal `json:"final_non_cash"`
	NonCashDifference decimal.Decimal `json:"non_cash_difference"`
}

// ShiftTerminatedEvent is emitted when an admin force-closes a shift.
type ShiftTerminatedEvent struct {
	ShiftID     uuid.UUID `json:"shift_id"`
	StoreID     string    `json:"store_id"`
	CashierName string    `json:"cashier_name"`
	EndTime     time.Time `json:"end_time"`
	Notes       string    `json:"notes,omitempty"`
}

// CashMovementRecordedEvent feeds the general ledger mirror.
type CashMovementRecordedEvent struct {
	MovementID  uuid.UUID              `json:"movement_id"`
	ShiftID     uuid.UUID              `json:"shift_id"`
	StoreID     string                 `json:"store_id"`
	Type        enums.CashMovementType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Reason      string                 `json:"reason"`
	Category    string                 `json:"category"`
	CashierName string                 `json:"cashier_name"`
	Date        time.Time              `json:"date"`

	// Ledger-facing description and category, resolved when the movement is recorded.
	LedgerDescription string `json:"ledger_description"`
	LedgerCategory    string `json:"ledger_category"`
}

func (e ShiftOpenedEvent) StoreRef() string { return e.StoreID }

func (e ShiftClosedEvent) StoreRef() string { return e.StoreID }

func (e ShiftTerminatedEvent) StoreRef() string { return e.StoreID }

func (e CashMovementRecordedEvent) StoreRef() string { return e.StoreID }
