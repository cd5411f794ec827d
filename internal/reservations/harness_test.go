package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/slotbook-backend/internal/catalog"
	"github.com/angelmondragon/slotbook-backend/internal/inventory"
	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/checkout"
	"github.com/angelmondragon/slotbook-backend/pkg/db"
	"github.com/angelmondragon/slotbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	client *db.Client
	engine *Engine
	orders *orders.Service
	ledger *inventory.Ledger
	slots  slots.Repository
	clock  *fakeClock
}

const (
	today    = "2026-10-15"
	tomorrow = "2026-10-16"
)

func newHarness(t *testing.T, defaultCapacity int) *harness {
	t.Helper()
	client := dbtest.Open(t)
	clock := &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}

	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	slotRepo := slots.NewRepository(client.DB())
	store, err := slots.NewStore(slotRepo, client, defaultCapacity, nil)
	require.NoError(t, err)
	orderRepo := orders.NewRepository(client.DB())

	engine, err := NewEngine(Config{HoldTTL: 15 * time.Minute, MaxListDays: 31, Location: time.UTC}, Deps{
		Tx:     client,
		Orders: orderRepo,
		Slots:  slotRepo,
		Store:  store,
		Outbox: emitter,
	})
	require.NoError(t, err)
	engine.SetClock(clock.Now)

	ledger, err := inventory.NewLedger(inventory.NewRepository(client.DB()), client, emitter, nil)
	require.NoError(t, err)

	cat, err := catalog.NewStatic([]catalog.Variant{
		{ProductID: "cake", VariantKey: "6-inch", Name: "Cake", UnitPriceCents: 2500},
		{ProductID: "cookies", Name: "Cookies", UnitPriceCents: 900},
	})
	require.NoError(t, err)

	svc, err := orders.NewService(orderRepo, client, cat, ledger, engine, emitter, nil)
	require.NoError(t, err)

	return &harness{client: client, engine: engine, orders: svc, ledger: ledger, slots: slotRepo, clock: clock}
}

func (h *harness) draft(t *testing.T) (*models.Order, string) {
	t.Helper()
	res, err := h.orders.CreateDraft(context.Background(), []checkout.LineInput{
		{ProductID: "cake", VariantKey: "6-inch", Quantity: 2},
		{ProductID: "cookies", Quantity: 1},
	})
	require.NoError(t, err)
	return res.Order, res.Credential
}

func (h *harness) slot(t *testing.T, id string) models.Slot {
	t.Helper()
	s, err := h.slots.Find(context.Background(), id)
	require.NoError(t, err)
	return *s
}

func (h *harness) order(t *testing.T, o *models.Order) *models.Order {
	t.Helper()
	got, err := h.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	return got
}

func (h *harness) seedStock(t *testing.T, qty int) {
	t.Helper()
	for _, key := range [][2]string{{"cake", "6-inch"}, {"cookies", "default"}} {
		require.NoError(t, h.client.DB().Create(&models.InventoryItem{ProductID: key[0], VariantKey: key[1], StockQty: qty, Active: true}).Error)
	}
}

func (h *harness) stock(t *testing.T, productID, variantKey string) int {
	t.Helper()
	item, err := h.ledger.Get(context.Background(), productID, variantKey)
	require.NoError(t, err)
	return item.StockQty
}
