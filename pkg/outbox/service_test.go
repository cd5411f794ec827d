package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
)

func newOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitWritesEnvelopeInTransaction(t *testing.T) {
	conn := newOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	orderID := uuid.NewString()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{Role: "guest"},
			Data:          map[string]any{"line_count": 2},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, EnvelopeVersion, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, enums.EventOrderCreated, envelope.EventType)
	require.Equal(t, orderID, envelope.AggregateID)
	require.Equal(t, "guest", envelope.Actor.Role)
	require.JSONEq(t, `{"line_count":2}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := newOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	orderID := uuid.NewString()
	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          struct{}{},
		}))
		return fmt.Errorf("abort")
	})

	rows, err := repo.ListByAggregate(orderID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRejectsUnknownEventTypeAndMissingTx(t *testing.T) {
	conn := newOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaid})
	require.Error(t, err)

	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope"})
	require.Error(t, err)

	err = svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		Data:          struct{}{},
	})
	require.ErrorContains(t, err, "without aggregate id")
}

func TestDecodeEnvelope(t *testing.T) {
	cases := map[string]struct {
		raw     string
		wantErr string
	}{
		"valid":          {raw: `{"version":1,"eventId":"e1","data":{"a":1}}`},
		"future version": {raw: `{"version":2,"eventId":"e1","data":{}}`, wantErr: "unsupported envelope version"},
		"missing id":     {raw: `{"version":1,"data":{}}`, wantErr: "missing eventId"},
		"null data":      {raw: `{"version":1,"eventId":"e1","data":null}`, wantErr: "missing data"},
		"not json":       {raw: `nope`, wantErr: "decode envelope"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tc.raw))
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestFetchUnpublishedSkipsExhaustedAndPublished(t *testing.T) {
	conn := newOutboxDB(t)
	repo := NewRepository(conn)

	fresh := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: "a", Payload: json.RawMessage(`{}`)}
	exhausted := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: "b", Payload: json.RawMessage(`{}`), AttemptCount: 3}
	published := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: "c", Payload: json.RawMessage(`{}`)}
	for _, row := range []models.OutboxEvent{fresh, exhausted, published} {
		require.NoError(t, repo.Insert(conn, row))
	}
	require.NoError(t, repo.MarkPublishedTx(nil, published.ID))

	rows, err := repo.FetchUnpublishedForPublish(nil, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, fresh.ID, rows[0].ID)

	require.NoError(t, repo.MarkFailedTx(nil, fresh.ID, fmt.Errorf("pubsub down")))
	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", fresh.ID).Error)
	require.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
}

func TestMarkTerminalParksRow(t *testing.T) {
	conn := newOutboxDB(t)
	repo := NewRepository(conn)

	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: "a", Payload: json.RawMessage(`{}`), AttemptCount: 1}
	require.NoError(t, repo.Insert(conn, row))

	err := conn.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, row.ID, fmt.Errorf("unsupported event"), 10)
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublishedForPublish(nil, 10, 10)
	require.NoError(t, err)
	require.Empty(t, rows)

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", row.ID).Error)
	require.Equal(t, 10, reloaded.AttemptCount)
	require.True(t, reloaded.Parked(10))
	require.Equal(t, "unsupported event", *reloaded.LastError)
}
