package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/pkg/db"
	"github.com/angelmondragon/slotbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/pagination"
)

func newLedger(t *testing.T) (*Ledger, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ledger, err := NewLedger(NewRepository(client.DB()), client, emitter, nil)
	require.NoError(t, err)
	return ledger, client
}

func seedStock(t *testing.T, client *db.Client, productID, variantKey string, qty int) {
	t.Helper()
	require.NoError(t, client.DB().Create(&models.InventoryItem{ProductID: productID, VariantKey: variantKey, StockQty: qty, Active: true}).Error)
}

func stockOf(t *testing.T, client *db.Client, productID, variantKey string) int {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, client.DB().Where("product_id = ? AND variant_key = ?", productID, variantKey).First(&item).Error)
	return item.StockQty
}

func movementDeltaSum(t *testing.T, client *db.Client, productID, variantKey string) int {
	t.Helper()
	var rows []models.StockMovement
	require.NoError(t, client.DB().Where("product_id = ? AND variant_key = ?", productID, variantKey).Find(&rows).Error)
	sum := 0
	for _, r := range rows {
		sum += r.Delta
	}
	return sum
}

func lines(orderID uuid.UUID, specs ...models.OrderLineItem) []models.OrderLineItem {
	for i := range specs {
		specs[i].ID = uuid.New()
		specs[i].OrderID = orderID
	}
	return specs
}

func TestDecrementAllowsBackorderAndRecordsSales(t *testing.T) {
	ledger, client := newLedger(t)
	ctx := context.Background()
	seedStock(t, client, "cake", "6-inch", 2)
	seedStock(t, client, "cookies", "default", 10)

	orderID := uuid.New()
	items := lines(orderID,
		models.OrderLineItem{ProductID: "cookies", VariantKey: "default", Quantity: 4},
		models.OrderLineItem{ProductID: "cake", VariantKey: "6-inch", Quantity: 3},
	)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Decrement(ctx, tx, orderID, items)
	}))

	require.Equal(t, -1, stockOf(t, client, "cake", "6-inch"), "stock may go negative")
	require.Equal(t, 6, stockOf(t, client, "cookies", "default"))

	page, err := ledger.ListMovements(ctx, ListMovementsInput{OrderID: &orderID})
	require.NoError(t, err)
	require.Len(t, page.Movements, 2)
	for _, m := range page.Movements {
		require.Equal(t, enums.MovementTypeSale, m.Type)
		require.Equal(t, -m.Quantity, m.Delta)
		require.Contains(t, m.Reason, orderID.String())
	}
}

func TestDecrementMissingProductAbortsTransaction(t *testing.T) {
	ledger, client := newLedger(t)
	ctx := context.Background()
	seedStock(t, client, "cake", "6-inch", 5)

	orderID := uuid.New()
	items := lines(orderID,
		models.OrderLineItem{ProductID: "cake", VariantKey: "6-inch", Quantity: 1},
		models.OrderLineItem{ProductID: "unicorn", VariantKey: "default", Quantity: 1},
	)
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Decrement(ctx, tx, orderID, items)
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductNotFound), "got %v", err)

	require.Equal(t, 5, stockOf(t, client, "cake", "6-inch"))
	var count int64
	require.NoError(t, client.DB().Model(&models.StockMovement{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRestockSkipsMissingRows(t *testing.T) {
	ledger, client := newLedger(t)
	ctx := context.Background()
	seedStock(t, client, "cake", "6-inch", 0)

	orderID := uuid.New()
	items := lines(orderID,
		models.OrderLineItem{ProductID: "cake", VariantKey: "6-inch", Quantity: 2},
		models.OrderLineItem{ProductID: "retired", VariantKey: "default", Quantity: 1},
	)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Restock(ctx, tx, orderID, items)
	}))
	require.Equal(t, 2, stockOf(t, client, "cake", "6-inch"))

	page, err := ledger.ListMovements(ctx, ListMovementsInput{ProductID: "cake"})
	require.NoError(t, err)
	require.Len(t, page.Movements, 1)
	require.Equal(t, enums.MovementTypeAdjust, page.Movements[0].Type)
	require.Equal(t, 2, page.Movements[0].BalanceAfter)
}

func TestSaleThenRestockNetsToZero(t *testing.T) {
	ledger, client := newLedger(t)
	ctx := context.Background()
	seedStock(t, client, "bread", "default", 0)
	_, _, err := ledger.Adjust(ctx, AdjustInput{ProductID: "bread", Type: enums.MovementTypeIn, Delta: 8, Actor: "admin-1"})
	require.NoError(t, err)

	orderID := uuid.New()
	items := lines(orderID, models.OrderLineItem{ProductID: "bread", VariantKey: "default", Quantity: 3})
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error { return ledger.Decrement(ctx, tx, orderID, items) }))
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error { return ledger.Restock(ctx, tx, orderID, items) }))

	require.Equal(t, 8, stockOf(t, client, "bread", "default"))
	require.Equal(t, 8, movementDeltaSum(t, client, "bread", "default"))
}

func TestAdjustValidation(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	cases := []AdjustInput{
		{ProductID: "", Type: enums.MovementTypeIn, Delta: 1},
		{ProductID: "x", Type: enums.MovementTypeIn, Delta: 0},
		{ProductID: "x", Type: enums.MovementTypeIn, Delta: -2},
		{ProductID: "x", Type: enums.MovementTypeAdjust, Delta: 0},
		{ProductID: "x", Type: enums.MovementTypeSale, Delta: -1},
	}
	for _, in := range cases {
		_, _, err := ledger.Adjust(ctx, in)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%+v: %v", in, err)
	}

	_, _, err := ledger.Adjust(ctx, AdjustInput{ProductID: "ghost", Type: enums.MovementTypeAdjust, Delta: -1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductNotFound))
}

func TestAdjustCreatesRowAndEmitsEvent(t *testing.T) {
	ledger, client := newLedger(t)
	ctx := context.Background()

	item, movement, err := ledger.Adjust(ctx, AdjustInput{ProductID: "tart", VariantKey: "mini", Type: enums.MovementTypeIn, Delta: 12, Reason: "morning bake", Actor: "admin-7"})
	require.NoError(t, err)
	require.Equal(t, 12, item.StockQty)
	require.Equal(t, 12, movement.BalanceAfter)
	require.Equal(t, "morning bake", movement.Reason)
	require.NotNil(t, movement.Actor)
	require.Equal(t, "admin-7", *movement.Actor)

	item, _, err = ledger.Adjust(ctx, AdjustInput{ProductID: "tart", VariantKey: "mini", Type: enums.MovementTypeAdjust, Delta: -15})
	require.NoError(t, err)
	require.Equal(t, -3, item.StockQty)

	events, err := outbox.NewRepository(client.DB()).ListByAggregate("tart/mini")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, enums.EventInventoryAdjusted, events[0].EventType)

	got, err := ledger.Get(ctx, "tart", "mini")
	require.NoError(t, err)
	require.Equal(t, -3, got.StockQty)

	_, err = ledger.Get(ctx, "tart", "maxi")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListMovementsPaginates(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	tick := 0
	ledger.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	for i := 0; i < 5; i++ {
		_, _, err := ledger.Adjust(ctx, AdjustInput{ProductID: "scone", Type: enums.MovementTypeIn, Delta: i + 1})
		require.NoError(t, err)
	}

	first, err := ledger.ListMovements(ctx, ListMovementsInput{ProductID: "scone", Params: paginationParams(2, "")})
	require.NoError(t, err)
	require.Len(t, first.Movements, 2)
	require.Equal(t, 5, first.Movements[0].Delta, "newest first")
	require.NotEmpty(t, first.NextCursor)

	second, err := ledger.ListMovements(ctx, ListMovementsInput{ProductID: "scone", Params: paginationParams(2, first.NextCursor)})
	require.NoError(t, err)
	require.Len(t, second.Movements, 2)
	require.Equal(t, 3, second.Movements[0].Delta)

	_, err = ledger.ListMovements(ctx, ListMovementsInput{Params: paginationParams(2, "%%%")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func paginationParams(limit int, cursor string) pagination.Params {
	return pagination.Params{Limit: limit, Cursor: cursor}
}
