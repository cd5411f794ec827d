package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/internal/catalog"
	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
	"github.com/angelmondragon/slotbook-backend/pkg/checkout"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order record and its state machine.
type Service struct {
	repo         Repository
	tx           txRunner
	catalog      catalog.Catalog
	stock        StockLedger
	reservations ReservationLifecycle
	outbox       outbox.Emitter
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, cat catalog.Catalog, stock StockLedger, reservations ReservationLifecycle, emitter outbox.Emitter, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation lifecycle required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Service{
		repo:         repo,
		tx:           tx,
		catalog:      cat,
		stock:        stock,
		reservations: reservations,
		outbox:       emitter,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// CreateDraft prices the lines and opens a NEW order owned by a fresh guest
// credential. The credential is only ever returned here.
func (s *Service) CreateDraft(ctx context.Context, lines []checkout.LineInput) (*DraftResult, error) {
	orderID := uuid.New()
	items, subtotal, err := s.priceLines(ctx, orderID, lines)
	if err != nil {
		return nil, err
	}
	token, hash, err := guestsession.Issue()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue guest token")
	}

	order := &models.Order{
		ID:                    orderID,
		Status:                enums.OrderStatusNew,
		PaymentStatus:         enums.PaymentStatusUnpaid,
		PublicAccessTokenHash: hash,
		SubtotalCents:         subtotal,
		Delivery:              models.DeliveryIntent{Type: enums.DeliveryTypeASAP},
		Reservation:           models.Reservation{Status: enums.ReservationStatusNone},
		Items:                 items,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID.String(),
			Actor:         &outbox.ActorRef{Role: "guest"},
			Data: payloads.OrderCreatedEvent{
				OrderID:       orderID,
				LineCount:     len(items),
				SubtotalCents: subtotal,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, orderID, "order.created", map[string]any{"line_count": len(items), "subtotal_cents": subtotal})
	return &DraftResult{Order: order, Credential: guestsession.FormatCredential(orderID, token)}, nil
}

// ReplaceItems swaps the cart lines of a NEW order.
func (s *Service) ReplaceItems(ctx context.Context, input ReplaceItemsInput) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := AuthenticateGuest(ctx, repo, input.Credential, true)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusNew {
			return stateConflict(order.Status, "items can only change before payment")
		}
		items, subtotal, err := s.priceLines(ctx, order.ID, input.Lines)
		if err != nil {
			return err
		}
		if err := repo.ReplaceItems(ctx, order.ID, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace items")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"subtotal_cents": subtotal}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subtotal")
		}
		order.Items = items
		order.SubtotalCents = subtotal
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result.ID, "order.items_replaced", map[string]any{"line_count": len(result.Items)})
	return result, nil
}

// GetByCredential returns the order a guest credential owns.
func (s *Service) GetByCredential(ctx context.Context, credential string) (*models.Order, error) {
	return AuthenticateGuest(ctx, s.repo, credential, false)
}

// Get returns any order by id.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOrInternal(err)
	}
	return order, nil
}

// ConfirmPayment applies the external payment signal: stock is decremented,
// an active hold becomes CONFIRMED and the order moves to PAID, all in one
// transaction.
func (s *Service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	method := strings.TrimSpace(input.Method)
	if method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFoundOrInternal(err)
		}
		switch {
		case order.Status == enums.OrderStatusCanceled:
			return pkgerrors.New(pkgerrors.CodeAlreadyCanceled, "order is canceled")
		case order.Status != enums.OrderStatusNew || order.PaymentStatus == enums.PaymentStatusPaid:
			return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order already paid")
		}

		if err := s.stock.Decrement(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}
		if err := s.reservations.ConfirmHold(ctx, tx, order); err != nil {
			return err
		}

		paidAt := s.now().UTC()
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":         enums.OrderStatusPaid,
			"payment_status": enums.PaymentStatusPaid,
			"payment_method": method,
			"paid_at":        paidAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		order.Status = enums.OrderStatusPaid
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaymentMethod = &method
		order.PaidAt = &paidAt

		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Actor:         input.Actor,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				PaymentMethod: method,
				SubtotalCents: order.SubtotalCents,
				SlotID:        order.Reservation.SlotID,
				PaidAt:        paidAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, result.ID, "order.paid", map[string]any{"payment_method": method, "line_count": len(result.Items)})
	return result, nil
}

// Cancel moves an order to CANCELED. Paid orders are restocked and any
// active hold is given back to its slot. Canceling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (*CancelResult, error) {
	var result *CancelResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFoundOrInternal(err)
		}
		if order.Status == enums.OrderStatusCanceled {
			result = &CancelResult{Order: order, AlreadyCanceled: true}
			return nil
		}
		if order.Status == enums.OrderStatusDelivered {
			return stateConflict(order.Status, "delivered orders cannot be canceled")
		}

		previous := order.Status
		restocked := false
		if order.PaymentStatus == enums.PaymentStatusPaid {
			if err := s.stock.Restock(ctx, tx, order.ID, order.Items); err != nil {
				return err
			}
			restocked = true
		}
		releasedSlot, err := s.reservations.ReleaseForCancel(ctx, tx, order)
		if err != nil {
			return err
		}

		canceledAt := s.now().UTC()
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": canceledAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order canceled")
		}
		order.Status = enums.OrderStatusCanceled
		order.CanceledAt = &canceledAt

		result = &CancelResult{Order: order, Restocked: restocked, ReleasedSlotID: releasedSlot}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Actor:         input.Actor,
			Data: payloads.OrderCanceledEvent{
				OrderID:        order.ID,
				PreviousStatus: previous,
				Restocked:      restocked,
				ReleasedSlotID: releasedSlot,
				CanceledAt:     canceledAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyCanceled {
		s.logTransition(ctx, result.Order.ID, "order.cancel_noop", nil)
		return result, nil
	}
	fields := map[string]any{"restocked": result.Restocked}
	if result.ReleasedSlotID != nil {
		fields["released_slot_id"] = *result.ReleasedSlotID
	}
	s.logTransition(ctx, result.Order.ID, "order.canceled", fields)
	return result, nil
}

// UpdateStatus writes a fulfilment status. It has no stock or capacity side
// effects and is refused before payment and on terminal orders.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if !input.Status.IsFulfilment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be CONFIRMED, IN_PRODUCTION, OUT_FOR_DELIVERY or DELIVERED").
			WithDetails(map[string]any{"status": input.Status})
	}

	var (
		result  *models.Order
		changed bool
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFoundOrInternal(err)
		}
		if order.Status.IsTerminal() {
			return stateConflict(order.Status, "order is closed")
		}
		if order.Status == enums.OrderStatusNew {
			return stateConflict(order.Status, "order must be paid first")
		}
		result = order
		if order.Status == input.Status {
			return nil
		}

		from = order.Status
		updates := map[string]any{"status": input.Status}
		if input.Status == enums.OrderStatusDelivered {
			deliveredAt := s.now().UTC()
			updates["delivered_at"] = deliveredAt
			order.DeliveredAt = &deliveredAt
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		order.Status = input.Status
		changed = true

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Actor:         input.Actor,
			Data:          payloads.OrderStatusChangedEvent{OrderID: order.ID, From: from, To: input.Status},
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logTransition(ctx, result.ID, "order.status_changed", map[string]any{"from": from, "to": result.Status})
	}
	return result, nil
}

func (s *Service) priceLines(ctx context.Context, orderID uuid.UUID, lines []checkout.LineInput) ([]models.OrderLineItem, int, error) {
	normalized := checkout.NormalizeLines(lines)
	if err := checkout.ValidateLines(normalized); err != nil {
		return nil, 0, err
	}
	items := make([]models.OrderLineItem, 0, len(normalized))
	subtotal := 0
	for _, line := range normalized {
		variant, err := s.catalog.Lookup(ctx, line.ProductID, line.VariantKey)
		if err != nil {
			return nil, 0, err
		}
		total := variant.UnitPriceCents * line.Quantity
		items = append(items, models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        orderID,
			ProductID:      line.ProductID,
			VariantKey:     line.VariantKey,
			Name:           variant.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: variant.UnitPriceCents,
			TotalCents:     total,
		})
		subtotal += total
	}
	return items, subtotal, nil
}

func (s *Service) logTransition(ctx context.Context, orderID uuid.UUID, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	if len(fields) > 0 {
		logCtx = s.logg.WithFields(logCtx, fields)
	}
	s.logg.Info(logCtx, msg)
}

func stateConflict(current enums.OrderStatus, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]any{"status": current})
}

func notFoundOrInternal(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
