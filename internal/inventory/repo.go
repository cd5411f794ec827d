package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
)

// MovementQuery filters the movement listing. Empty fields are ignored.
type MovementQuery struct {
	ProductID  string
	VariantKey string
	OrderID    *uuid.UUID
	Limit      int
	After      *MovementCursor
}

// MovementCursor positions a page after the last row returned.
type MovementCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Repository persists stock rows and their movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, productID, variantKey string) (*models.InventoryItem, error)
	FindForUpdate(ctx context.Context, productID, variantKey string) (*models.InventoryItem, error)
	Create(ctx context.Context, item *models.InventoryItem) error
	SetStock(ctx context.Context, productID, variantKey string, qty int) error
	InsertMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, q MovementQuery) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to a database handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, productID, variantKey string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_key = ?", productID, variantKey).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindForUpdate(ctx context.Context, productID, variantKey string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND variant_key = ?", productID, variantKey).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SetStock(ctx context.Context, productID, variantKey string, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND variant_key = ?", productID, variantKey).
		Updates(map[string]any{"stock_qty": qty}).Error
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

// ListMovements returns newest first.
func (r *repository) ListMovements(ctx context.Context, q MovementQuery) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if q.ProductID != "" {
		query = query.Where("product_id = ?", q.ProductID)
	}
	if q.VariantKey != "" {
		query = query.Where("variant_key = ?", q.VariantKey)
	}
	if q.OrderID != nil {
		query = query.Where("order_id = ?", *q.OrderID)
	}
	if q.After != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.After.CreatedAt, q.After.CreatedAt, q.After.ID)
	}
	var rows []models.StockMovement
	err := query.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Find(&rows).Error
	return rows, err
}
