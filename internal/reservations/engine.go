package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/metrics"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox/payloads"
)

const (
	defaultListDays = 7
	sweepBatchSize  = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config tunes the engine.
type Config struct {
	HoldTTL     time.Duration
	MaxListDays int
	// Location decides which calendar day is today.
	Location *time.Location
}

// Deps are the collaborators of the engine.
type Deps struct {
	Tx      txRunner
	Orders  orders.Repository
	Slots   slots.Repository
	Store   *slots.Store
	Outbox  outbox.Emitter
	Metrics *metrics.ReservationMetrics
	Logger  *logger.Logger
}

// Engine places, moves, releases and expires slot holds. Every operation
// that touches a slot counter runs in one transaction together with the
// order row it belongs to.
type Engine struct {
	cfg     Config
	tx      txRunner
	orders  orders.Repository
	slots   slots.Repository
	store   *slots.Store
	outbox  outbox.Emitter
	metrics *metrics.ReservationMetrics
	logg    *logger.Logger
	now     func() time.Time
	// sweepBatch caps the holds expired per sweep transaction.
	sweepBatch int
}

// NewEngine validates the configuration and dependencies.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if cfg.HoldTTL <= 0 {
		return nil, errors.New("hold ttl must be positive")
	}
	if cfg.MaxListDays <= 0 {
		return nil, errors.New("max list days must be positive")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	switch {
	case deps.Tx == nil:
		return nil, errors.New("transaction runner required")
	case deps.Orders == nil:
		return nil, errors.New("orders repository required")
	case deps.Slots == nil:
		return nil, errors.New("slots repository required")
	case deps.Store == nil:
		return nil, errors.New("slot store required")
	case deps.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	}
	return &Engine{
		cfg:     cfg,
		tx:      deps.Tx,
		orders:  deps.Orders,
		slots:   deps.Slots,
		store:   deps.Store,
		outbox:  deps.Outbox,
		metrics: deps.Metrics,
		logg:    deps.Logger,
		now:     time.Now,

		sweepBatch: sweepBatchSize,
	}, nil
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// HoldInput asks for a seat in one slot.
type HoldInput struct {
	Credential string
	Date       string
	Window     string
}

// HoldResult is the order after the hold together with the slot it counts
// against.
type HoldResult struct {
	Order     *models.Order
	Slot      *models.Slot
	Refreshed bool
}

// Hold reserves one seat of the requested slot for the order. Holding the
// slot the order already holds only extends the expiry; holding another slot
// moves the seat.
func (e *Engine) Hold(ctx context.Context, input HoldInput) (*HoldResult, error) {
	day, err := slots.ParseDate(input.Date)
	if err != nil {
		return nil, err
	}
	window, err := slots.ParseWindow(input.Window)
	if err != nil {
		return nil, err
	}
	date := day.Format(slots.DateLayout)
	if date < e.today() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date is in the past").
			WithDetails(map[string]any{"date": date})
	}
	targetID := slots.ID(date, window)

	var (
		result *HoldResult
		prior  string
	)
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := e.orders.WithTx(tx)
		slotsRepo := e.slots.WithTx(tx)

		order, err := orders.AuthenticateGuest(ctx, ordersRepo, input.Credential, true)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusNew {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only unpaid orders can hold a slot").
				WithDetails(map[string]any{"status": order.Status})
		}

		if err := slotsRepo.EnsureSlots(ctx, []models.Slot{e.store.NewSlot(date, window)}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure slot")
		}
		prior = ""
		if id, ok := order.ActiveSlotID(); ok {
			prior = id
		}
		locked, err := lockSlots(ctx, slotsRepo, targetID, prior)
		if err != nil {
			return err
		}
		target := locked[targetID]

		now := e.now().UTC()
		expiresAt := now.Add(e.cfg.HoldTTL)

		if prior == targetID {
			if err := ordersRepo.Update(ctx, order.ID, map[string]any{
				"reservation_expires_at": expiresAt,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refresh hold")
			}
			order.Reservation.ExpiresAt = &expiresAt
			result = &HoldResult{Order: order, Slot: target, Refreshed: true}
			return nil
		}

		if !target.IsOpen {
			return pkgerrors.New(pkgerrors.CodeSlotClosed, "delivery slot is closed").
				WithDetails(map[string]any{"slotId": targetID})
		}
		if target.Reserved >= target.Capacity {
			return slotFull(target)
		}

		if prior != "" {
			if err := slotsRepo.Decrement(ctx, prior, 1); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release prior slot")
			}
			if p, ok := locked[prior]; ok && p.Reserved > 0 {
				p.Reserved--
			}
		}
		ok, err := slotsRepo.TryIncrement(ctx, targetID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "take seat")
		}
		if !ok {
			return slotFull(target)
		}
		target.Reserved++

		if err := ordersRepo.Update(ctx, order.ID, map[string]any{
			"reservation_slot_id":     targetID,
			"reservation_status":      enums.ReservationStatusHeld,
			"reservation_reserved_at": now,
			"reservation_expires_at":  expiresAt,
			"delivery_type":           enums.DeliveryTypeScheduled,
			"delivery_date":           date,
			"delivery_window":         window,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record hold")
		}
		order.Reservation = models.Reservation{
			SlotID:     &targetID,
			Status:     enums.ReservationStatusHeld,
			ReservedAt: &now,
			ExpiresAt:  &expiresAt,
		}
		order.Delivery = models.DeliveryIntent{Type: enums.DeliveryTypeScheduled, Date: &date, Window: &window}

		if prior != "" {
			if err := e.emitReservation(ctx, tx, enums.EventReservationReleased, order, prior, nil); err != nil {
				return err
			}
		}
		if err := e.emitReservation(ctx, tx, enums.EventReservationHeld, order, targetID, &expiresAt); err != nil {
			return err
		}
		result = &HoldResult{Order: order, Slot: target}
		return nil
	})
	if err != nil {
		e.metrics.IncHold(holdOutcome(err))
		return nil, err
	}

	outcome := metrics.HoldOutcomeHeld
	msg := "reservation.held"
	if result.Refreshed {
		outcome = metrics.HoldOutcomeRefreshed
		msg = "reservation.refreshed"
	}
	e.metrics.IncHold(outcome)
	fields := map[string]any{"reserved": result.Slot.Reserved, "capacity": result.Slot.Capacity}
	if prior != "" && prior != targetID {
		fields["moved_from"] = prior
		e.metrics.IncRelease()
	}
	e.log(ctx, result.Order, targetID, msg, fields)
	return result, nil
}

// Release gives the order's held seat back. Orders without an active hold
// are returned unchanged.
func (e *Engine) Release(ctx context.Context, credential string) (*models.Order, error) {
	var (
		result   *models.Order
		released string
	)
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := orders.AuthenticateGuest(ctx, e.orders.WithTx(tx), credential, true)
		if err != nil {
			return err
		}
		result = order
		if order.Reservation.Status == enums.ReservationStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "paid bookings are released by cancellation").
				WithDetails(map[string]any{"status": order.Status})
		}
		slotID, err := e.releaseLocked(ctx, tx, order)
		if err != nil {
			return err
		}
		if slotID != nil {
			released = *slotID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if released != "" {
		e.metrics.IncRelease()
		e.log(ctx, result, released, "reservation.released", nil)
	}
	return result, nil
}

// SetIntent records how the shopper wants delivery. Switching to ASAP drops
// any held slot.
func (e *Engine) SetIntent(ctx context.Context, credential string, rawType string) (*models.Order, error) {
	intent, err := enums.ParseDeliveryType(rawType)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery type must be ASAP or SCHEDULED").
			WithDetails(map[string]any{"type": rawType})
	}

	var (
		result   *models.Order
		released string
	)
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := e.orders.WithTx(tx)
		order, err := orders.AuthenticateGuest(ctx, ordersRepo, credential, true)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusNew {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery can only change before payment").
				WithDetails(map[string]any{"status": order.Status})
		}
		result = order
		if intent == enums.DeliveryTypeASAP {
			slotID, err := e.releaseLocked(ctx, tx, order)
			if err != nil {
				return err
			}
			if slotID != nil {
				released = *slotID
			}
		}
		if order.Delivery.Type == intent {
			return nil
		}
		if err := ordersRepo.Update(ctx, order.ID, map[string]any{"delivery_type": intent}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record delivery intent")
		}
		order.Delivery.Type = intent
		return nil
	})
	if err != nil {
		return nil, err
	}
	if released != "" {
		e.metrics.IncRelease()
		e.log(ctx, result, released, "reservation.released", map[string]any{"reason": "asap"})
	}
	return result, nil
}

// ConfirmHold turns a HELD reservation into CONFIRMED so the expiry sweep no
// longer reclaims it. Without a held seat the order is unscheduled instead.
// The caller holds the order lock.
func (e *Engine) ConfirmHold(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.Reservation.Status != enums.ReservationStatusHeld {
		return e.unschedule(ctx, tx, order)
	}
	if err := e.orders.WithTx(tx).Update(ctx, order.ID, map[string]any{
		"reservation_status": enums.ReservationStatusConfirmed,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm hold")
	}
	order.Reservation.Status = enums.ReservationStatusConfirmed
	return nil
}

// unschedule drops a date and window that no seat backs any more, so a paid
// order whose hold expired or was released is never counted as booked into
// that window. The order keeps SCHEDULED intent and needs a new date.
func (e *Engine) unschedule(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if _, ok := order.ActiveSlotID(); ok {
		return nil
	}
	if order.Delivery.Date == nil && order.Delivery.Window == nil {
		return nil
	}
	if err := e.orders.WithTx(tx).Update(ctx, order.ID, map[string]any{
		"delivery_date":   nil,
		"delivery_window": nil,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear unbacked delivery window")
	}
	if e.logg != nil {
		fields := map[string]any{"reservation_status": order.Reservation.Status}
		if order.Delivery.Date != nil {
			fields["delivery_date"] = *order.Delivery.Date
		}
		e.logg.Warn(e.logg.WithFields(e.logg.WithOrderID(ctx, order.ID.String()), fields), "order.paid_without_seat")
	}
	order.Delivery.Date = nil
	order.Delivery.Window = nil
	return nil
}

// ReleaseForCancel gives back the seat of a HELD or CONFIRMED reservation.
// The caller holds the order lock.
func (e *Engine) ReleaseForCancel(ctx context.Context, tx *gorm.DB, order *models.Order) (*string, error) {
	slotID, err := e.releaseLocked(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if slotID != nil {
		e.metrics.IncRelease()
	}
	return slotID, nil
}

// releaseLocked decrements the order's active slot, marks the reservation
// RELEASED and clears the scheduled date and window.
func (e *Engine) releaseLocked(ctx context.Context, tx *gorm.DB, order *models.Order) (*string, error) {
	slotID, ok := order.ActiveSlotID()
	if !ok {
		return nil, nil
	}
	slotsRepo := e.slots.WithTx(tx)
	if _, err := slotsRepo.FindForUpdate(ctx, slotID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock slot")
		}
	} else if err := slotsRepo.Decrement(ctx, slotID, 1); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release slot")
	}

	if err := e.orders.WithTx(tx).Update(ctx, order.ID, map[string]any{
		"reservation_status":     enums.ReservationStatusReleased,
		"reservation_slot_id":    nil,
		"reservation_expires_at": nil,
		"delivery_date":          nil,
		"delivery_window":        nil,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record release")
	}
	order.Reservation.Status = enums.ReservationStatusReleased
	order.Reservation.SlotID = nil
	order.Reservation.ExpiresAt = nil
	order.Delivery.Date = nil
	order.Delivery.Window = nil

	if err := e.emitReservation(ctx, tx, enums.EventReservationReleased, order, slotID, nil); err != nil {
		return nil, err
	}
	return &slotID, nil
}

func (e *Engine) emitReservation(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, slotID string, expiresAt *time.Time) error {
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID.String(),
		Data: payloads.ReservationEvent{
			OrderID:   order.ID,
			SlotID:    slotID,
			ExpiresAt: expiresAt,
		},
	})
}

func (e *Engine) today() string {
	return slots.Today(e.now(), e.cfg.Location)
}

func (e *Engine) log(ctx context.Context, order *models.Order, slotID, msg string, fields map[string]any) {
	if e.logg == nil {
		return
	}
	logCtx := e.logg.WithSlotID(e.logg.WithOrderID(ctx, order.ID.String()), slotID)
	if len(fields) > 0 {
		logCtx = e.logg.WithFields(logCtx, fields)
	}
	e.logg.Info(logCtx, msg)
}

// lockSlots locks the given slots in id order so two transactions moving
// seats between the same pair of slots cannot deadlock.
func lockSlots(ctx context.Context, repo slots.Repository, ids ...string) (map[string]*models.Slot, error) {
	unique := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)

	out := make(map[string]*models.Slot, len(unique))
	for _, id := range unique {
		slot, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("lock slot %s", id))
		}
		out[id] = slot
	}
	if _, ok := out[ids[0]]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "slot vanished after creation")
	}
	return out, nil
}

func slotFull(slot *models.Slot) error {
	return pkgerrors.New(pkgerrors.CodeSlotFull, "delivery slot is full").
		WithDetails(map[string]any{
			"slotId":    slot.ID,
			"capacity":  slot.Capacity,
			"reserved":  slot.Reserved,
			"available": slot.Available(),
		})
}

func holdOutcome(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeSlotFull):
		return metrics.HoldOutcomeFull
	case pkgerrors.IsCode(err, pkgerrors.CodeSlotClosed):
		return metrics.HoldOutcomeClosed
	default:
		return metrics.HoldOutcomeError
	}
}
