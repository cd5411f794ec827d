package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds the orders repository to a database handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, product_id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate locks the order row, then loads its items.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("created_at ASC, product_id ASC").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderLineItem) error {
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.OrderLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockExpiredHolds returns HELD reservations whose expiry passed, oldest
// first, with their rows locked.
func (r *repository) LockExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reservation_status = ? AND reservation_expires_at < ?", enums.ReservationStatusHeld, now).
		Order("reservation_expires_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ExpireHolds marks the given reservations EXPIRED, detaches them from their
// slots and clears the scheduled date and window the seat stood for.
func (r *repository) ExpireHolds(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND reservation_status = ?", ids, enums.ReservationStatusHeld).
		Updates(map[string]any{
			"reservation_status":  enums.ReservationStatusExpired,
			"reservation_slot_id": nil,
			"delivery_date":       nil,
			"delivery_window":     nil,
		}).Error
}

// CountActiveBySlot counts HELD and CONFIRMED reservations of non-canceled
// orders per slot.
func (r *repository) CountActiveBySlot(ctx context.Context, slotIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(slotIDs))
	if len(slotIDs) == 0 {
		return out, nil
	}
	type row struct {
		SlotID string
		Total  int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("reservation_slot_id AS slot_id, COUNT(*) AS total").
		Where("reservation_slot_id IN ?", slotIDs).
		Where("reservation_status IN ?", enums.ActiveReservationStatuses()).
		Where("status <> ?", enums.OrderStatusCanceled).
		Group("reservation_slot_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.SlotID] = r.Total
	}
	return out, nil
}
