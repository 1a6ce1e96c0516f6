package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/enums"
)

// MoneyScale is the number of fractional digits every money column keeps.
const MoneyScale = 2

// FitsMoneyScale reports whether amount can be stored without rounding.
func FitsMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyScale))
}

// Shift is one cashier's working session at a store, from open to close.
// Running totals only grow while the shift is active; close-time fields stay
// nil until the shift is ended or terminated.
type Shift struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StoreID     string            `gorm:"column:store_id;not null;uniqueIndex:ux_shifts_store_active,where:status = 'active'" json:"store_id"`
	CashierID   string            `gorm:"column:cashier_id;not null" json:"cashier_id"`
	CashierName string            `gorm:"column:cashier_name;not null" json:"cashier_name"`
	Status      enums.ShiftStatus `gorm:"column:status;not null" json:"status"`
	StartTime   time.Time         `gorm:"column:start_time;not null;index" json:"start_time"`
	EndTime     *time.Time        `gorm:"column:end_time" json:"end_time,omitempty"`

	InitialCash decimal.Decimal `gorm:"column:initial_cash;type:numeric(14,2);not null" json:"initial_cash"`

	TotalSales        decimal.Decimal `gorm:"column:total_sales;type:numeric(14,2);not null;default:0" json:"total_sales"`
	TotalCashSales    decimal.Decimal `gorm:"column:total_cash_sales;type:numeric(14,2);not null;default:0" json:"total_cash_sales"`
	TotalNonCashSales decimal.Decimal `gorm:"column:total_non_cash_sales;type:numeric(14,2);not null;default:0" json:"total_non_cash_sales"`
	TotalDiscount     decimal.Decimal `gorm:"column:total_discount;type:numeric(14,2);not null;default:0" json:"total_discount"`
	TransactionsCount int64           `gorm:"column:transactions_count;not null;default:0" json:"transactions_count"`
	TotalCashIn       decimal.Decimal `gorm:"column:total_cash_in;type:numeric(14,2);not null;default:0" json:"total_cash_in"`
	TotalCashOut      decimal.Decimal `gorm:"column:total_cash_out;type:numeric(14,2);not null;default:0" json:"total_cash_out"`

	ExpectedCash      *decimal.Decimal `gorm:"column:expected_cash;type:numeric(14,2)" json:"expected_cash,omitempty"`
	FinalCash         *decimal.Decimal `gorm:"column:final_cash;type:numeric(14,2)" json:"final_cash,omitempty"`
	CashDifference    *decimal.Decimal `gorm:"column:cash_difference;type:numeric(14,2)" json:"cash_difference,omitempty"`
	ExpectedNonCash   *decimal.Decimal `gorm:"column:expected_non_cash;type:numeric(14,2)" json:"expected_non_cash,omitempty"`
	FinalNonCash      *decimal.Decimal `gorm:"column:final_non_cash;type:numeric(14,2)" json:"final_non_cash,omitempty"`
	NonCashDifference *decimal.Decimal `gorm:"column:non_cash_difference;type:numeric(14,2)" json:"non_cash_difference,omitempty"`
	Notes             *string          `gorm:"column:notes" json:"notes,omitempty"`
	TerminatedByAdmin bool             `gorm:"column:terminated_by_admin;not null;default:false" json:"terminated_by_admin"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Shift) TableName() string { return "shifts" }

// BeforeCreate assigns the id client-side so every driver sees the same value.
func (s *Shift) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the shift still accepts sales and movements.
func (s *Shift) IsActive() bool {
	return s != nil && s.Status == enums.ShiftStatusActive
}

// ShortID is the upper-cased first eight characters of the id, used in
// human-facing descriptions and messages.
func (s *Shift) ShortID() string {
	if s == nil {
		return ""
	}
	return ShortID(s.ID)
}

// ShortID formats any uuid the way shifts are referenced on receipts.
func ShortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}
