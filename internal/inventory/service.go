package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/slotbook-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AdjustInput is a manual stock correction.
type AdjustInput struct {
	ProductID  string
	VariantKey string
	Type       enums.MovementType
	Delta      int
	Reason     string
	Actor      string
}

// ListMovementsInput mirrors the admin movement listing query.
type ListMovementsInput struct {
	ProductID  string
	VariantKey string
	OrderID    *uuid.UUID
	pagination.Params
}

// MovementPage is one page of movements, newest first.
type MovementPage struct {
	Movements  []models.StockMovement
	NextCursor string
}

// Ledger applies stock changes and records a movement for each one.
type Ledger struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewLedger wires the inventory ledger.
func NewLedger(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("inventory repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &Ledger{repo: repo, tx: tx, outbox: emitter, logg: logg, now: time.Now}, nil
}

// Decrement takes stock for every line of a paid order inside the caller's
// transaction. Stock may go negative. A line without an inventory row fails
// the whole transaction.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderLineItem) error {
	repo := l.repo.WithTx(tx)
	for _, item := range sortedLines(items) {
		row, err := repo.FindForUpdate(ctx, item.ProductID, item.VariantKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
					WithDetails(map[string]any{"productId": item.ProductID, "variantKey": item.VariantKey})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
		}
		if _, err := l.apply(ctx, repo, row, movementSpec{
			Type:     enums.MovementTypeSale,
			Quantity: item.Quantity,
			Delta:    -item.Quantity,
			Reason:   fmt.Sprintf("sale for order %s", orderID),
			OrderID:  &orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Restock gives back the stock of a canceled paid order inside the caller's
// transaction. Lines whose inventory row is gone are skipped.
func (l *Ledger) Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderLineItem) error {
	repo := l.repo.WithTx(tx)
	for _, item := range sortedLines(items) {
		row, err := repo.FindForUpdate(ctx, item.ProductID, item.VariantKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if l.logg != nil {
					logCtx := l.logg.WithFields(l.logg.WithOrderID(ctx, orderID.String()), map[string]any{
						"product_id":  item.ProductID,
						"variant_key": item.VariantKey,
						"quantity":    item.Quantity,
					})
					l.logg.Warn(logCtx, "inventory.restock_skipped")
				}
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
		}
		if _, err := l.apply(ctx, repo, row, movementSpec{
			Type:     enums.MovementTypeAdjust,
			Quantity: item.Quantity,
			Delta:    item.Quantity,
			Reason:   fmt.Sprintf("restock for canceled order %s", orderID),
			OrderID:  &orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Adjust applies a manual correction in its own transaction. IN movements
// must add stock; a missing row is created only when stock is added.
func (l *Ledger) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryItem, *models.StockMovement, error) {
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.VariantKey = strings.TrimSpace(input.VariantKey)
	if input.VariantKey == "" {
		input.VariantKey = "default"
	}
	if input.ProductID == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	switch input.Type {
	case enums.MovementTypeIn:
		if input.Delta <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "IN movements require a positive delta")
		}
	case enums.MovementTypeAdjust:
		if input.Delta == 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
		}
	default:
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "movement type must be IN or ADJUST").
			WithDetails(map[string]any{"type": input.Type})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "manual adjustment"
	}

	var (
		item     *models.InventoryItem
		movement *models.StockMovement
	)
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		row, err := repo.FindForUpdate(ctx, input.ProductID, input.VariantKey)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
			}
			if input.Delta <= 0 {
				return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
					WithDetails(map[string]any{"productId": input.ProductID, "variantKey": input.VariantKey})
			}
			row = &models.InventoryItem{ProductID: input.ProductID, VariantKey: input.VariantKey, StockQty: 0, Active: true}
			if err := repo.Create(ctx, row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create inventory")
			}
		}

		var actor *string
		if input.Actor != "" {
			actor = &input.Actor
		}
		magnitude := input.Delta
		if magnitude < 0 {
			magnitude = -magnitude
		}
		movement, err = l.apply(ctx, repo, row, movementSpec{
			Type:     input.Type,
			Quantity: magnitude,
			Delta:    input.Delta,
			Reason:   reason,
			Actor:    actor,
		})
		if err != nil {
			return err
		}

		item = row
		return l.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   input.ProductID + "/" + input.VariantKey,
			Actor:         &outbox.ActorRef{Subject: input.Actor},
			Data: payloads.InventoryAdjustedEvent{
				ProductID:    input.ProductID,
				VariantKey:   input.VariantKey,
				Type:         input.Type,
				Delta:        input.Delta,
				BalanceAfter: row.StockQty,
				Actor:        input.Actor,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"product_id":    item.ProductID,
			"variant_key":   item.VariantKey,
			"delta":         input.Delta,
			"balance_after": item.StockQty,
		})
		l.logg.Info(logCtx, "inventory.adjusted")
	}
	return item, movement, nil
}

// Get returns the stock row of one variant.
func (l *Ledger) Get(ctx context.Context, productID, variantKey string) (*models.InventoryItem, error) {
	if strings.TrimSpace(variantKey) == "" {
		variantKey = "default"
	}
	item, err := l.repo.Find(ctx, productID, variantKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
	}
	return item, nil
}

// ListMovements pages through movements newest first.
func (l *Ledger) ListMovements(ctx context.Context, input ListMovementsInput) (*MovementPage, error) {
	cursor, err := input.Params.After()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	q := MovementQuery{
		ProductID:  strings.TrimSpace(input.ProductID),
		VariantKey: strings.TrimSpace(input.VariantKey),
		OrderID:    input.OrderID,
		Limit:      input.Params.Fetch(),
	}
	if cursor != nil {
		q.After = &MovementCursor{CreatedAt: cursor.CreatedAt, ID: cursor.ID}
	}
	rows, err := l.repo.ListMovements(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list movements")
	}

	page := &MovementPage{}
	page.Movements, page.NextCursor = pagination.Trim(input.Params, rows, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, nil
}

type movementSpec struct {
	Type     enums.MovementType
	Quantity int
	Delta    int
	Reason   string
	OrderID  *uuid.UUID
	Actor    *string
}

// apply writes the new balance onto row and appends the matching movement.
func (l *Ledger) apply(ctx context.Context, repo Repository, row *models.InventoryItem, spec movementSpec) (*models.StockMovement, error) {
	balance := row.StockQty + spec.Delta
	if err := repo.SetStock(ctx, row.ProductID, row.VariantKey, balance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update stock")
	}
	row.StockQty = balance

	movement := &models.StockMovement{
		ID:           uuid.New(),
		ProductID:    row.ProductID,
		VariantKey:   row.VariantKey,
		Type:         spec.Type,
		Quantity:     spec.Quantity,
		Delta:        spec.Delta,
		BalanceAfter: balance,
		Reason:       spec.Reason,
		OrderID:      spec.OrderID,
		Actor:        spec.Actor,
		CreatedAt:    l.now().UTC(),
	}
	if err := repo.InsertMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record movement")
	}
	return movement, nil
}

// sortedLines orders lines by product and variant so concurrent payments lock
// inventory rows in the same order.
func sortedLines(items []models.OrderLineItem) []models.OrderLineItem {
	out := make([]models.OrderLineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariantKey < out[j].VariantKey
	})
	return out
}
