package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/internal/inventory"
	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/reconcile"
	"github.com/angelmondragon/slotbook-backend/internal/reservations"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/checkout"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
)

// SlotLister lists slots for the storefront calendar.
type SlotLister interface {
	ListSlots(ctx context.Context, input reservations.ListInput) ([]models.Slot, error)
}

// ReservationService is the guest-facing reservation surface.
type ReservationService interface {
	Hold(ctx context.Context, input reservations.HoldInput) (*reservations.HoldResult, error)
	Release(ctx context.Context, credential string) (*models.Order, error)
	SetIntent(ctx context.Context, credential string, rawType string) (*models.Order, error)
}

// DraftService covers the shopper's own order.
type DraftService interface {
	CreateDraft(ctx context.Context, lines []checkout.LineInput) (*orders.DraftResult, error)
	ReplaceItems(ctx context.Context, input orders.ReplaceItemsInput) (*models.Order, error)
	GetByCredential(ctx context.Context, credential string) (*models.Order, error)
}

// OrderAdminService covers payment signals and back-office status writes.
type OrderAdminService interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ConfirmPayment(ctx context.Context, input orders.ConfirmPaymentInput) (*models.Order, error)
	Cancel(ctx context.Context, input orders.CancelInput) (*orders.CancelResult, error)
	UpdateStatus(ctx context.Context, input orders.UpdateStatusInput) (*models.Order, error)
}

// SlotConfigurer applies admin capacity changes.
type SlotConfigurer interface {
	Configure(ctx context.Context, input slots.ConfigureInput) (*models.Slot, error)
}

// InventoryService is the admin view of the stock ledger.
type InventoryService interface {
	Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryItem, *models.StockMovement, error)
	Get(ctx context.Context, productID, variantKey string) (*models.InventoryItem, error)
	ListMovements(ctx context.Context, input inventory.ListMovementsInput) (*inventory.MovementPage, error)
}

// Reconciler recomputes slot counters.
type Reconciler interface {
	Reconcile(ctx context.Context, days int) (*reconcile.Report, error)
	MaxDays() int
}

// JobRunner serializes manual job runs.
type JobRunner interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
