package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

type slotView struct {
	ID        string           `json:"id"`
	Date      string           `json:"date"`
	Window    enums.SlotWindow `json:"window"`
	Capacity  int              `json:"capacity"`
	Reserved  int              `json:"reserved"`
	Available int              `json:"available"`
	IsOpen    bool             `json:"isOpen"`
}

func newSlotView(slot *models.Slot) *slotView {
	if slot == nil {
		return nil
	}
	return &slotView{
		ID:        slot.ID,
		Date:      slot.Date,
		Window:    slot.Window,
		Capacity:  slot.Capacity,
		Reserved:  slot.Reserved,
		Available: slot.Available(),
		IsOpen:    slot.IsOpen,
	}
}

func newSlotViews(rows []models.Slot) []slotView {
	out := make([]slotView, 0, len(rows))
	for i := range rows {
		out = append(out, *newSlotView(&rows[i]))
	}
	return out
}

type lineItemView struct {
	ProductID      string `json:"productId"`
	VariantKey     string `json:"variantKey"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unitPriceCents"`
	TotalCents     int    `json:"totalCents"`
}

type deliveryView struct {
	Type   enums.DeliveryType `json:"type"`
	Date   *string            `json:"date,omitempty"`
	Window *enums.SlotWindow  `json:"window,omitempty"`
}

type reservationView struct {
	SlotID     *string                 `json:"slotId,omitempty"`
	Status     enums.ReservationStatus `json:"status"`
	ReservedAt *time.Time              `json:"reservedAt,omitempty"`
	ExpiresAt  *time.Time              `json:"expiresAt,omitempty"`
}

type orderView struct {
	ID            uuid.UUID           `json:"id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	PaymentMethod *string             `json:"paymentMethod,omitempty"`
	SubtotalCents int                 `json:"subtotalCents"`
	Items         []lineItemView      `json:"items"`
	Delivery      deliveryView        `json:"delivery"`
	Reservation   reservationView     `json:"reservation"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	CanceledAt    *time.Time          `json:"canceledAt,omitempty"`
	DeliveredAt   *time.Time          `json:"deliveredAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func newOrderView(order *models.Order) *orderView {
	if order == nil {
		return nil
	}
	items := make([]lineItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemView{
			ProductID:      item.ProductID,
			VariantKey:     item.VariantKey,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return &orderView{
		ID:            order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		SubtotalCents: order.SubtotalCents,
		Items:         items,
		Delivery: deliveryView{
			Type:   order.Delivery.Type,
			Date:   order.Delivery.Date,
			Window: order.Delivery.Window,
		},
		Reservation: reservationView{
			SlotID:     order.Reservation.SlotID,
			Status:     order.Reservation.Status,
			ReservedAt: order.Reservation.ReservedAt,
			ExpiresAt:  order.Reservation.ExpiresAt,
		},
		PaidAt:      order.PaidAt,
		CanceledAt:  order.CanceledAt,
		DeliveredAt: order.DeliveredAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

type inventoryView struct {
	ProductID  string    `json:"productId"`
	VariantKey string    `json:"variantKey"`
	StockQty   int       `json:"stockQty"`
	Backorder  bool      `json:"backorder"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newInventoryView(item *models.InventoryItem) *inventoryView {
	if item == nil {
		return nil
	}
	return &inventoryView{
		ProductID:  item.ProductID,
		VariantKey: item.VariantKey,
		StockQty:   item.StockQty,
		Backorder:  item.StockQty < 0,
		Active:     item.Active,
		UpdatedAt:  item.UpdatedAt,
	}
}

type movementView struct {
	ID           uuid.UUID          `json:"id"`
	ProductID    string             `json:"productId"`
	VariantKey   string             `json:"variantKey"`
	Type         enums.MovementType `json:"type"`
	Quantity     int                `json:"quantity"`
	Delta        int                `json:"delta"`
	BalanceAfter int                `json:"balanceAfter"`
	Reason       string             `json:"reason"`
	OrderID      *uuid.UUID         `json:"orderId,omitempty"`
	Actor        *string            `json:"actor,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func newMovementView(m *models.StockMovement) *movementView {
	if m == nil {
		return nil
	}
	return &movementView{
		ID:           m.ID,
		ProductID:    m.ProductID,
		VariantKey:   m.VariantKey,
		Type:         m.Type,
		Quantity:     m.Quantity,
		Delta:        m.Delta,
		BalanceAfter: m.BalanceAfter,
		Reason:       m.Reason,
		OrderID:      m.OrderID,
		Actor:        m.Actor,
		CreatedAt:    m.CreatedAt,
	}
}
