package models

import "time"

// InventoryItem is the on-hand count of one product variant. StockQty may go
// negative, which signals a backorder.
type InventoryItem struct {
	ProductID  string    `gorm:"column:product_id;primaryKey"`
	VariantKey string    `gorm:"column:variant_key;primaryKey"`
	StockQty   int       `gorm:"column:stock_qty;not null;default:0"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
