package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/enums"
)

// CashMovement is a non-sale cash event in a shift's drawer. Rows are
// append-only.
type CashMovement struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ShiftID     uuid.UUID              `gorm:"column:shift_id;type:uuid;not null;index" json:"shift_id"`
	StoreID     string                 `gorm:"column:store_id;not null" json:"store_id"`
	Type        enums.CashMovementType `gorm:"column:type;not null" json:"type"`
	Amount      decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Reason      string                 `gorm:"column:reason;not null" json:"reason"`
	Category    string                 `gorm:"column:category;not null;default:General" json:"category"`
	CashierName string                 `gorm:"column:cashier_name;not null" json:"cashier_name"`
	Date        time.Time              `gorm:"column:date;not null" json:"date"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CashMovement) TableName() string { return "cash_movements" }

func (m *CashMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
