package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderLineItem) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	LockExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ExpireHolds(ctx context.Context, ids []uuid.UUID) error
	CountActiveBySlot(ctx context.Context, slotIDs []string) (map[string]int, error)
}

// StockLedger moves inventory inside the payment and cancellation
// transactions.
type StockLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderLineItem) error
	Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderLineItem) error
}

// ReservationLifecycle adjusts the order's slot hold when payment or
// cancellation lands. Both run in the caller's transaction with the order
// row already locked, and update the passed order in place.
type ReservationLifecycle interface {
	ConfirmHold(ctx context.Context, tx *gorm.DB, order *models.Order) error
	ReleaseForCancel(ctx context.Context, tx *gorm.DB, order *models.Order) (*string, error)
}
