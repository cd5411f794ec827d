package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/db"
	"github.com/angelmondragon/slotbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(Params{
		Tx:      client,
		Slots:   slots.NewRepository(client.DB()),
		Orders:  orders.NewRepository(client.DB()),
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
		MaxDays: 90,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return svc, client
}

func seedSlot(t *testing.T, client *db.Client, date string, window enums.SlotWindow, capacity, reserved int) string {
	t.Helper()
	id := slots.ID(date, window)
	require.NoError(t, client.DB().Create(&models.Slot{ID: id, Date: date, Window: window, Capacity: capacity, Reserved: reserved, IsOpen: true}).Error)
	return id
}

func seedOrder(t *testing.T, client *db.Client, status enums.OrderStatus, resStatus enums.ReservationStatus, slotID string) {
	t.Helper()
	order := models.Order{
		ID:                    uuid.New(),
		Status:                status,
		PaymentStatus:         enums.PaymentStatusUnpaid,
		PublicAccessTokenHash: "hash",
		Delivery:              models.DeliveryIntent{Type: enums.DeliveryTypeScheduled},
		Reservation:           models.Reservation{Status: resStatus},
	}
	if slotID != "" {
		order.Reservation.SlotID = &slotID
	}
	require.NoError(t, client.DB().Create(&order).Error)
}

func TestReconcileCorrectsDrift(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()

	drifted := seedSlot(t, client, "2026-10-15", enums.SlotWindowMorning, 4, 5)
	missing := seedSlot(t, client, "2026-10-16", enums.SlotWindowEvening, 2, 0)
	exact := seedSlot(t, client, "2026-10-16", enums.SlotWindowMorning, 3, 1)
	outside := seedSlot(t, client, "2026-10-20", enums.SlotWindowMorning, 3, 3)

	seedOrder(t, client, enums.OrderStatusNew, enums.ReservationStatusHeld, drifted)
	seedOrder(t, client, enums.OrderStatusPaid, enums.ReservationStatusConfirmed, drifted)
	seedOrder(t, client, enums.OrderStatusCanceled, enums.ReservationStatusConfirmed, drifted)
	seedOrder(t, client, enums.OrderStatusNew, enums.ReservationStatusExpired, drifted)
	seedOrder(t, client, enums.OrderStatusDelivered, enums.ReservationStatusConfirmed, missing)
	seedOrder(t, client, enums.OrderStatusNew, enums.ReservationStatusHeld, exact)
	seedOrder(t, client, enums.OrderStatusNew, enums.ReservationStatusHeld, outside)

	report, err := svc.Reconcile(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "2026-10-15", report.From)
	require.Equal(t, "2026-10-16", report.To)
	require.Equal(t, 2, report.Corrected)
	require.Len(t, report.Slots, 3)

	byID := map[string]SlotReport{}
	for _, s := range report.Slots {
		byID[s.ID] = s
	}
	require.Equal(t, SlotReport{ID: drifted, Date: "2026-10-15", Window: enums.SlotWindowMorning, Capacity: 4, Before: 5, After: 2}, byID[drifted])
	require.Equal(t, 0, byID[missing].Before)
	require.Equal(t, 1, byID[missing].After)
	require.Equal(t, 1, byID[exact].After)

	require.Equal(t, []DailyBooked{
		{Date: "2026-10-15", Booked: 2, Capacity: 4},
		{Date: "2026-10-16", Booked: 2, Capacity: 5},
	}, report.DailyBooked)

	repo := slots.NewRepository(client.DB())
	for id, want := range map[string]int{drifted: 2, missing: 1, exact: 1, outside: 3} {
		got, err := repo.Find(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got.Reserved, id)
	}

	events, err := outbox.NewRepository(client.DB()).ListByAggregate(drifted)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventSlotReconciled, events[0].EventType)

	again, err := svc.Reconcile(ctx, 2)
	require.NoError(t, err)
	require.Zero(t, again.Corrected, "a second run finds nothing to fix")
}

func TestReconcileValidatesDays(t *testing.T) {
	svc, _ := newService(t)
	for _, days := range []int{0, -3, 91} {
		_, err := svc.Reconcile(context.Background(), days)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "days=%d", days)
	}
}

func TestJobKeepsLastReport(t *testing.T) {
	svc, client := newService(t)
	seedSlot(t, client, "2026-10-15", enums.SlotWindowAfternoon, 2, 1)

	job := NewJob(svc, 1)
	require.Equal(t, JobName, job.Name())
	require.Nil(t, job.Report())
	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, job.Report())
	require.Equal(t, 1, job.Report().Corrected)
}
