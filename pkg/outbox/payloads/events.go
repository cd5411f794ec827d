package payloads

import (
	"time"

	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted when a shopper session first creates its draft.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	LineCount     int       `json:"line_count"`
	SubtotalCents int       `json:"subtotal_cents"`
}

// OrderPaidEvent follows the payment signal that decremented inventory.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	PaymentMethod string    `json:"payment_method"`
	SubtotalCents int       `json:"subtotal_cents"`
	SlotID        *string   `json:"slot_id,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

// OrderCanceledEvent records what the cancellation gave back.
type OrderCanceledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Restocked      bool              `json:"restocked"`
	ReleasedSlotID *string           `json:"released_slot_id,omitempty"`
	CanceledAt     time.Time         `json:"canceled_at"`
}

// OrderStatusChangedEvent covers the plain fulfilment writes.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// ReservationEvent is shared by held and released reservations.
type ReservationEvent struct {
	OrderID   uuid.UUID  `json:"order_id"`
	SlotID    string     `json:"slot_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ReservationsExpiredEvent summarizes one sweep batch for a slot.
type ReservationsExpiredEvent struct {
	SlotID   string      `json:"slot_id"`
	OrderIDs []uuid.UUID `json:"order_ids"`
}

// SlotReconciledEvent is emitted for every slot whose counter was corrected.
type SlotReconciledEvent struct {
	SlotID string `json:"slot_id"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// InventoryAdjustedEvent is emitted for manual stock adjustments.
type InventoryAdjustedEvent struct {
	ProductID    string             `json:"product_id"`
	VariantKey   string             `json:"variant_key"`
	Type         enums.MovementType `json:"type"`
	Delta        int                `json:"delta"`
	BalanceAfter int                `json:"balance_after"`
	Actor        string             `json:"actor,omitempty"`
}
