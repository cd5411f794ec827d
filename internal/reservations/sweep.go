package reservations

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox/payloads"
)

// SweepResult summarizes one expiry pass.
type SweepResult struct {
	Expired int
	// PerSlot maps slot id to the number of seats given back.
	PerSlot map[string]int
}

// SweepExpired reclaims every HELD reservation whose expiry has passed. Each
// batch of orders and their slots is updated in one transaction, and batches
// repeat until one comes back short, so running it twice or concurrently
// never decrements a slot twice for the same hold.
func (e *Engine) SweepExpired(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{PerSlot: map[string]int{}}
	now := e.now().UTC()
	limit := e.sweepBatch
	if limit <= 0 {
		limit = sweepBatchSize
	}

	for {
		batch, err := e.sweepBatchAt(ctx, now, limit)
		if err != nil {
			if result.Expired > 0 {
				e.metrics.AddExpired(result.Expired)
			}
			return nil, err
		}
		result.Expired += batch.Expired
		for slotID, n := range batch.PerSlot {
			result.PerSlot[slotID] += n
		}
		if batch.Expired < limit {
			break
		}
	}

	if result.Expired > 0 {
		e.metrics.AddExpired(result.Expired)
		if e.logg != nil {
			logCtx := e.logg.WithFields(ctx, map[string]any{"expired": result.Expired, "slots": result.PerSlot})
			e.logg.Info(logCtx, "reservation.expired")
		}
	} else if e.logg != nil {
		e.logg.Debug(ctx, "reservation.sweep_empty")
	}
	return result, nil
}

// sweepBatchAt expires up to limit holds in one transaction.
func (e *Engine) sweepBatchAt(ctx context.Context, now time.Time, limit int) (*SweepResult, error) {
	result := &SweepResult{PerSlot: map[string]int{}}
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result.Expired = 0
		result.PerSlot = map[string]int{}

		ordersRepo := e.orders.WithTx(tx)
		expired, err := ordersRepo.LockExpiredHolds(ctx, now, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load expired holds")
		}
		if len(expired) == 0 {
			return nil
		}

		bySlot := map[string][]uuid.UUID{}
		ids := make([]uuid.UUID, 0, len(expired))
		for _, order := range expired {
			ids = append(ids, order.ID)
			if order.Reservation.SlotID == nil || *order.Reservation.SlotID == "" {
				continue
			}
			slotID := *order.Reservation.SlotID
			bySlot[slotID] = append(bySlot[slotID], order.ID)
		}

		slotIDs := make([]string, 0, len(bySlot))
		for id := range bySlot {
			slotIDs = append(slotIDs, id)
		}
		sort.Strings(slotIDs)

		slotsRepo := e.slots.WithTx(tx)
		for _, slotID := range slotIDs {
			count := len(bySlot[slotID])
			if _, err := slotsRepo.FindForUpdate(ctx, slotID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock slot")
			}
			if err := slotsRepo.Decrement(ctx, slotID, count); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "return expired seats")
			}
			result.PerSlot[slotID] = count
		}

		if err := ordersRepo.ExpireHolds(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire holds")
		}
		result.Expired = len(ids)

		for _, slotID := range slotIDs {
			if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReservationExpired,
				AggregateType: enums.AggregateSlot,
				AggregateID:   slotID,
				OccurredAt:    now,
				Data:          payloads.ReservationsExpiredEvent{SlotID: slotID, OrderIDs: bySlot[slotID]},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListInput selects the slots to list.
type ListInput struct {
	// From defaults to today.
	From     string
	Days     int
	OpenOnly bool
}

// ListSlots sweeps expired holds, creates missing slots for the range and
// returns them by date and window. A failed sweep is logged and does not
// block the listing.
func (e *Engine) ListSlots(ctx context.Context, input ListInput) ([]models.Slot, error) {
	today := e.today()
	from := today
	if input.From != "" {
		day, err := slots.ParseDate(input.From)
		if err != nil {
			return nil, err
		}
		from = day.Format(slots.DateLayout)
		if from < today {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "from is in the past").
				WithDetails(map[string]any{"from": from, "today": today})
		}
	}
	days := input.Days
	if days == 0 {
		days = defaultListDays
	}
	if days < 1 || days > e.cfg.MaxListDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days out of range").
			WithDetails(map[string]any{"days": input.Days, "max": e.cfg.MaxListDays})
	}

	if _, err := e.SweepExpired(ctx); err != nil && e.logg != nil {
		e.logg.Error(ctx, "reservation.sweep_failed", err)
	}

	start, _ := time.Parse(slots.DateLayout, from)
	dates := slots.DateRange(start, days)
	if err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return e.store.EnsureDates(ctx, tx, dates)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure slots")
	}

	rows, err := e.slots.ListRange(ctx, dates[0], dates[len(dates)-1], false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list slots")
	}
	if !input.OpenOnly {
		return rows, nil
	}
	open := rows[:0]
	for _, row := range rows {
		if row.IsOpen {
			open = append(open, row)
		}
	}
	return open, nil
}
