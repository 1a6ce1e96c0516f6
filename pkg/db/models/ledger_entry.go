package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shiftledger/pkg/enums"
)

// LedgerEntry mirrors a cash movement into the store's general ledger. RefID
// points at the originating CashMovement and is unique, so replays are no-ops.
type LedgerEntry struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StoreID     string                  `gorm:"column:store_id;not null" json:"store_id"`
	Type        enums.CashMovementType  `gorm:"column:type;not null" json:"type"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Description string                  `gorm:"column:description;not null" json:"description"`
	Category    string                  `gorm:"column:category;not null" json:"category"`
	Source      enums.LedgerEntrySource `gorm:"column:source;not null" json:"source"`
	RefID       uuid.UUID               `gorm:"column:ref_id;type:uuid;not null;uniqueIndex" json:"ref_id"`
	OccurredAt  time.Time               `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
