package slots

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConfigureInput carries the admin changes for one slot. Nil fields are left
// untouched.
type ConfigureInput struct {
	Date     string
	Window   enums.SlotWindow
	Capacity *int
	IsOpen   *bool
}

// Store is the capacity store: it creates slots on demand and applies admin
// configuration.
type Store struct {
	repo            Repository
	tx              txRunner
	defaultCapacity int
	logg            *logger.Logger
}

// NewStore wires the store.
func NewStore(repo Repository, tx txRunner, defaultCapacity int, logg *logger.Logger) (*Store, error) {
	if repo == nil {
		return nil, errors.New("slot repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if defaultCapacity < 0 {
		return nil, errors.New("default capacity must not be negative")
	}
	return &Store{repo: repo, tx: tx, defaultCapacity: defaultCapacity, logg: logg}, nil
}

// DefaultCapacity is the capacity given to lazily created slots.
func (s *Store) DefaultCapacity() int {
	return s.defaultCapacity
}

// NewSlot builds an unsaved open slot with the default capacity.
func (s *Store) NewSlot(date string, window enums.SlotWindow) models.Slot {
	return models.Slot{
		ID:       ID(date, window),
		Date:     date,
		Window:   window,
		Capacity: s.defaultCapacity,
		IsOpen:   true,
	}
}

// EnsureDates creates every window of the given dates that does not exist yet.
func (s *Store) EnsureDates(ctx context.Context, tx *gorm.DB, dates []string) error {
	rows := make([]models.Slot, 0, len(dates)*len(enums.SlotWindows()))
	for _, date := range dates {
		for _, window := range enums.SlotWindows() {
			rows = append(rows, s.NewSlot(date, window))
		}
	}
	return s.repo.WithTx(tx).EnsureSlots(ctx, rows)
}

// Resolve returns the slot for date and window, creating it if needed.
func (s *Store) Resolve(ctx context.Context, tx *gorm.DB, date string, window enums.SlotWindow, lock bool) (*models.Slot, error) {
	repo := s.repo.WithTx(tx)
	if err := repo.EnsureSlots(ctx, []models.Slot{s.NewSlot(date, window)}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure slot")
	}
	var (
		slot *models.Slot
		err  error
	)
	if lock {
		slot, err = repo.FindForUpdate(ctx, ID(date, window))
	} else {
		slot, err = repo.Find(ctx, ID(date, window))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load slot")
	}
	return slot, nil
}

// Configure applies admin capacity and open-flag changes. Lowering capacity
// below the reserved count is allowed; it only blocks new holds.
func (s *Store) Configure(ctx context.Context, input ConfigureInput) (*models.Slot, error) {
	if _, err := time.Parse(DateLayout, input.Date); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date must be formatted as YYYY-MM-DD")
	}
	if !input.Window.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery window")
	}
	if input.Capacity != nil && *input.Capacity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must not be negative").
			WithDetails(map[string]any{"capacity": *input.Capacity})
	}

	var result *models.Slot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		slot, err := s.Resolve(ctx, tx, input.Date, input.Window, true)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if input.Capacity != nil {
			updates["capacity"] = *input.Capacity
			slot.Capacity = *input.Capacity
		}
		if input.IsOpen != nil {
			updates["is_open"] = *input.IsOpen
			slot.IsOpen = *input.IsOpen
		}
		if err := s.repo.WithTx(tx).UpdateConfig(ctx, slot.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update slot")
		}
		result = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithSlotID(ctx, result.ID), map[string]any{
			"capacity": result.Capacity,
			"reserved": result.Reserved,
			"is_open":  result.IsOpen,
		})
		s.logg.Info(logCtx, "slot.configured")
	}
	return result, nil
}
