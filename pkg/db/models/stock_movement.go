package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

// StockMovement is an append-only ledger row. Summing Delta per variant
// reproduces its stock history.
type StockMovement struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    string             `gorm:"column:product_id;not null;index"`
	VariantKey   string             `gorm:"column:variant_key;not null"`
	Type         enums.MovementType `gorm:"column:type;type:varchar(16);not null"`
	Quantity     int                `gorm:"column:quantity;not null"`
	Delta        int                `gorm:"column:delta;not null"`
	BalanceAfter int                `gorm:"column:balance_after;not null"`
	Reason       string             `gorm:"column:reason;not null"`
	OrderID      *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	Actor        *string            `gorm:"column:actor"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
