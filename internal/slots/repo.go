package slots

import (
	"context"
	"errors"
	"sort"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists slot counters. Every mutating call is expected to run
// inside the caller's transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureSlots(ctx context.Context, rows []models.Slot) error
	Find(ctx context.Context, id string) (*models.Slot, error)
	FindForUpdate(ctx context.Context, id string) (*models.Slot, error)
	ListRange(ctx context.Context, fromDate, toDate string, forUpdate bool) ([]models.Slot, error)
	TryIncrement(ctx context.Context, id string) (bool, error)
	Decrement(ctx context.Context, id string, n int) error
	SetReserved(ctx context.Context, id string, reserved int) error
	UpdateConfig(ctx context.Context, id string, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a slot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureSlots inserts the rows that do not exist yet. Existing slots keep
// their counters and configuration.
func (r *repository) EnsureSlots(ctx context.Context, rows []models.Slot) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rows).Error
}

func (r *repository) Find(ctx context.Context, id string) (*models.Slot, error) {
	var slot models.Slot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id string) (*models.Slot, error) {
	var slot models.Slot
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repository) ListRange(ctx context.Context, fromDate, toDate string, forUpdate bool) ([]models.Slot, error) {
	q := r.db.WithContext(ctx).
		Where("slot_date >= ? AND slot_date <= ?", fromDate, toDate).
		Order("id ASC")
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.Slot
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	SortChronologically(rows)
	return rows, nil
}

// TryIncrement takes one seat if the slot is open and below capacity.
func (r *repository) TryIncrement(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("id = ? AND is_open = ? AND reserved < capacity", id, true).
		Updates(map[string]any{"reserved": gorm.Expr("reserved + 1")})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Decrement gives back n seats, never going below zero.
func (r *repository) Decrement(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reserved": gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", n, n),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetReserved(ctx context.Context, id string, reserved int) error {
	if reserved < 0 {
		return errors.New("reserved must not be negative")
	}
	return r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("id = ?", id).
		Updates(map[string]any{"reserved": reserved}).Error
}

func (r *repository) UpdateConfig(ctx context.Context, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SortChronologically orders slots by date, then by window within the day.
func SortChronologically(rows []models.Slot) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Window.Rank() < rows[j].Window.Rank()
	})
}
