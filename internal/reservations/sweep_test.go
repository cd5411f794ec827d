package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
)

func TestSweepReclaimsExpiredHoldsOnce(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	orderA, credA := h.draft(t)
	orderB, credB := h.draft(t)
	orderC, credC := h.draft(t)
	morning := slots.ID(tomorrow, enums.SlotWindowMorning)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: credA, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)
	_, err = h.engine.Hold(ctx, HoldInput{Credential: credB, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	_, err = h.engine.Hold(ctx, HoldInput{Credential: credC, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)
	require.Equal(t, 3, h.slot(t, morning).Reserved)

	h.clock.Advance(6 * time.Minute)
	res, err := h.engine.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Expired)
	require.Equal(t, map[string]int{morning: 2}, res.PerSlot)
	require.Equal(t, 1, h.slot(t, morning).Reserved)

	for _, o := range []uuid.UUID{orderA.ID, orderB.ID} {
		got, err := h.orders.Get(ctx, o)
		require.NoError(t, err)
		require.Equal(t, enums.ReservationStatusExpired, got.Reservation.Status)
		require.Nil(t, got.Reservation.SlotID)
		require.Nil(t, got.Delivery.Date, "expired hold no longer books a date")
		require.Nil(t, got.Delivery.Window)
	}
	require.Equal(t, enums.ReservationStatusHeld, h.order(t, orderC).Reservation.Status)

	again, err := h.engine.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, again.Expired)
	require.Equal(t, 1, h.slot(t, morning).Reserved)

	events, err := outbox.NewRepository(h.client.DB()).ListByAggregate(morning)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventReservationExpired, events[0].EventType)
}

func TestExpiredOrderCanHoldAgain(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	order, cred := h.draft(t)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "EVENING"})
	require.NoError(t, err)
	h.clock.Advance(16 * time.Minute)
	_, err = h.engine.SweepExpired(ctx)
	require.NoError(t, err)

	_, err = h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "EVENING"})
	require.NoError(t, err)
	require.Equal(t, 1, h.slot(t, slots.ID(tomorrow, enums.SlotWindowEvening)).Reserved)
	require.Equal(t, enums.ReservationStatusHeld, h.order(t, order).Reservation.Status)
}

func TestSweepDrainsEveryBatch(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	h.engine.sweepBatch = 2

	for i := 0; i < 5; i++ {
		_, cred := h.draft(t)
		window := "MORNING"
		if i%2 == 1 {
			window = "EVENING"
		}
		_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: window})
		require.NoError(t, err)
	}
	morning := slots.ID(tomorrow, enums.SlotWindowMorning)
	evening := slots.ID(tomorrow, enums.SlotWindowEvening)

	h.clock.Advance(20 * time.Minute)
	res, err := h.engine.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, res.Expired)
	require.Equal(t, map[string]int{morning: 3, evening: 2}, res.PerSlot)
	require.Zero(t, h.slot(t, morning).Reserved)
	require.Zero(t, h.slot(t, evening).Reserved)

	again, err := h.engine.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, again.Expired, "nothing is left for a second pass")
}

func TestPaymentAfterExpiredHoldDoesNotOverbook(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	h.seedStock(t, 10)
	late, lateCred := h.draft(t)
	morning := slots.ID(tomorrow, enums.SlotWindowMorning)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: lateCred, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)
	h.clock.Advance(20 * time.Minute)
	_, err = h.engine.ListSlots(ctx, ListInput{From: tomorrow, Days: 1})
	require.NoError(t, err)

	paid, err := h.orders.ConfirmPayment(ctx, confirmInput(late.ID))
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.Equal(t, enums.ReservationStatusExpired, paid.Reservation.Status)
	require.Nil(t, paid.Delivery.Date)
	require.Nil(t, paid.Delivery.Window)

	other, otherCred := h.draft(t)
	_, err = h.engine.Hold(ctx, HoldInput{Credential: otherCred, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)
	require.Equal(t, 1, h.slot(t, morning).Reserved)

	stored := h.order(t, late)
	require.Nil(t, stored.Delivery.Date, "paid order must not claim the window it lost")
	require.Nil(t, stored.Delivery.Window)
	require.Equal(t, tomorrow, *h.order(t, other).Delivery.Date)
}

func TestPaymentClearsWindowLeftOnExpiredRow(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	h.seedStock(t, 10)
	order, cred := h.draft(t)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "AFTERNOON"})
	require.NoError(t, err)
	h.clock.Advance(20 * time.Minute)
	_, err = h.engine.SweepExpired(ctx)
	require.NoError(t, err)

	// rows expired before the sweep cleared the window still carry it
	window := enums.SlotWindowAfternoon
	require.NoError(t, orders.NewRepository(h.client.DB()).Update(ctx, order.ID, map[string]any{
		"delivery_date":   tomorrow,
		"delivery_window": window,
	}))

	paid, err := h.orders.ConfirmPayment(ctx, confirmInput(order.ID))
	require.NoError(t, err)
	require.Nil(t, paid.Delivery.Date)
	require.Nil(t, h.order(t, order).Delivery.Window)
	require.Equal(t, enums.DeliveryTypeScheduled, h.order(t, order).Delivery.Type)
}

func TestListSlotsSweepsAndOrders(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	_, cred := h.draft(t)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: today, Window: "AFTERNOON"})
	require.NoError(t, err)

	rows, err := h.engine.ListSlots(ctx, ListInput{Days: 2})
	require.NoError(t, err)
	require.Len(t, rows, 6)
	want := []string{
		today + "_MORNING", today + "_AFTERNOON", today + "_EVENING",
		tomorrow + "_MORNING", tomorrow + "_AFTERNOON", tomorrow + "_EVENING",
	}
	for i, row := range rows {
		require.Equal(t, want[i], row.ID)
	}
	require.Equal(t, 1, rows[1].Reserved)
	require.Equal(t, 1, rows[1].Available())

	h.clock.Advance(20 * time.Minute)
	rows, err = h.engine.ListSlots(ctx, ListInput{From: today, Days: 1})
	require.NoError(t, err)
	require.Equal(t, 0, rows[1].Reserved, "listing sweeps expired holds first")
}

func TestListSlotsOpenOnlyAndValidation(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	closed := false
	_, err := h.engine.store.Configure(ctx, slots.ConfigureInput{Date: tomorrow, Window: enums.SlotWindowMorning, IsOpen: &closed})
	require.NoError(t, err)

	rows, err := h.engine.ListSlots(ctx, ListInput{From: tomorrow, Days: 1, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.True(t, row.IsOpen)
	}

	for _, in := range []ListInput{
		{From: "2026-10-14", Days: 1},
		{From: "oct 20", Days: 1},
		{Days: -1},
		{Days: 32},
	} {
		_, err := h.engine.ListSlots(ctx, in)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%+v: %v", in, err)
	}
}

func TestPaymentConfirmsHoldAndSweepLeavesIt(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	h.seedStock(t, 10)
	order, cred := h.draft(t)
	slotID := slots.ID(tomorrow, enums.SlotWindowMorning)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)
	paid, err := h.orders.ConfirmPayment(ctx, confirmInput(order.ID))
	require.NoError(t, err)
	require.Equal(t, enums.ReservationStatusConfirmed, paid.Reservation.Status)

	h.clock.Advance(time.Hour)
	res, err := h.engine.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Expired)
	require.Equal(t, 1, h.slot(t, slotID).Reserved)

	_, err = h.engine.Release(ctx, cred)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "paid booking is not released by the shopper")
}

func TestCancelPaidOrderRestocksAndFreesSeat(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	h.seedStock(t, 10)
	order, cred := h.draft(t)
	slotID := slots.ID(tomorrow, enums.SlotWindowEvening)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "EVENING"})
	require.NoError(t, err)
	_, err = h.orders.ConfirmPayment(ctx, confirmInput(order.ID))
	require.NoError(t, err)
	require.Equal(t, 8, h.stock(t, "cake", "6-inch"))
	require.Equal(t, 9, h.stock(t, "cookies", "default"))

	res, err := h.orders.Cancel(ctx, orders.CancelInput{OrderID: order.ID})
	require.NoError(t, err)
	require.True(t, res.Restocked)
	require.NotNil(t, res.ReleasedSlotID)
	require.Equal(t, slotID, *res.ReleasedSlotID)

	require.Equal(t, 10, h.stock(t, "cake", "6-inch"))
	require.Equal(t, 10, h.stock(t, "cookies", "default"))
	require.Equal(t, 0, h.slot(t, slotID).Reserved)

	again, err := h.orders.Cancel(ctx, orders.CancelInput{OrderID: order.ID})
	require.NoError(t, err)
	require.True(t, again.AlreadyCanceled)
	require.Equal(t, 10, h.stock(t, "cake", "6-inch"), "second cancel must not restock again")
	require.Equal(t, 0, h.slot(t, slotID).Reserved)

	_, err = h.orders.ConfirmPayment(ctx, confirmInput(order.ID))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyCanceled))
}

func TestCancelUnpaidOrderReleasesHoldWithoutRestock(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	h.seedStock(t, 5)
	order, cred := h.draft(t)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)

	res, err := h.orders.Cancel(ctx, orders.CancelInput{OrderID: order.ID})
	require.NoError(t, err)
	require.False(t, res.Restocked)
	require.NotNil(t, res.ReleasedSlotID)
	require.Equal(t, 5, h.stock(t, "cake", "6-inch"))
	require.Equal(t, 0, h.slot(t, slots.ID(tomorrow, enums.SlotWindowMorning)).Reserved)
}

func TestPaymentWithUnknownInventoryLeavesEverythingUntouched(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	order, cred := h.draft(t)

	_, err := h.engine.Hold(ctx, HoldInput{Credential: cred, Date: tomorrow, Window: "MORNING"})
	require.NoError(t, err)

	_, err = h.orders.ConfirmPayment(ctx, confirmInput(order.ID))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductNotFound), "got %v", err)

	got := h.order(t, order)
	require.Equal(t, enums.OrderStatusNew, got.Status)
	require.Equal(t, enums.ReservationStatusHeld, got.Reservation.Status)
}

func confirmInput(id uuid.UUID) orders.ConfirmPaymentInput {
	return orders.ConfirmPaymentInput{OrderID: id, Method: "cash", Actor: &outbox.ActorRef{Subject: "pay-svc", Role: "payments"}}
}
