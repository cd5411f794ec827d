package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

// Order is a shopper's order from draft through delivery.
type Order struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Status                enums.OrderStatus   `gorm:"column:status;type:varchar(32);not null"`
	PaymentStatus         enums.PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null"`
	PaymentMethod         *string             `gorm:"column:payment_method"`
	PublicAccessTokenHash string              `gorm:"column:public_access_token_hash;type:varchar(64);not null"`
	SubtotalCents         int                 `gorm:"column:subtotal_cents;not null;default:0"`
	Delivery              DeliveryIntent      `gorm:"embedded;embeddedPrefix:delivery_"`
	Reservation           Reservation         `gorm:"embedded;embeddedPrefix:reservation_"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	CanceledAt            *time.Time          `gorm:"column:canceled_at"`
	DeliveredAt           *time.Time          `gorm:"column:delivered_at"`
	Items                 []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// DeliveryIntent records how the shopper wants the order delivered.
type DeliveryIntent struct {
	Type   enums.DeliveryType `gorm:"column:type;type:varchar(16);not null"`
	Date   *string            `gorm:"column:date;type:varchar(10)"`
	Window *enums.SlotWindow  `gorm:"column:window;type:varchar(16)"`
}

// Reservation is the order's hold on a slot. At most one is active.
type Reservation struct {
	SlotID     *string                 `gorm:"column:slot_id;type:varchar(32);index"`
	Status     enums.ReservationStatus `gorm:"column:status;type:varchar(16);not null"`
	ReservedAt *time.Time              `gorm:"column:reserved_at"`
	ExpiresAt  *time.Time              `gorm:"column:expires_at;index"`
}

// ActiveSlotID returns the slot the order currently counts against.
func (o Order) ActiveSlotID() (string, bool) {
	if !o.Reservation.Status.IsActive() || o.Reservation.SlotID == nil || *o.Reservation.SlotID == "" {
		return "", false
	}
	return *o.Reservation.SlotID, true
}
