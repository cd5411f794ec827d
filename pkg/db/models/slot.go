package models

import (
	"time"

	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

// Slot is the bookable capacity of one delivery window on one calendar day.
// ID is the date_window key, e.g. 2026-10-15_MORNING.
type Slot struct {
	ID        string           `gorm:"column:id;type:varchar(32);primaryKey"`
	Date      string           `gorm:"column:slot_date;type:varchar(10);not null;index"`
	Window    enums.SlotWindow `gorm:"column:time_window;type:varchar(16);not null"`
	Capacity  int              `gorm:"column:capacity;not null"`
	Reserved  int              `gorm:"column:reserved;not null;default:0"`
	IsOpen    bool             `gorm:"column:is_open;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the number of seats a new hold could still take.
func (s Slot) Available() int {
	if s.Reserved >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Reserved
}
