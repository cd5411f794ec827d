package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/slotbook-backend/pkg/config"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox/payloads"
)

// EventDescriptor says which aggregate an event type belongs to, where it
// is published and what its data decodes into.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

func describe[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:     event,
		AggregateType: aggregate,
		newPayload:    func() any { return new(T) },
	}
}

// ResolvedEvent is a row whose envelope and payload both decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every order, reservation, slot and inventory
// event to the order events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrderEventsTopic == "" {
		return nil, errors.New("order events topic is required")
	}

	descriptors := []EventDescriptor{
		describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
		describe[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder),
		describe[payloads.OrderCanceledEvent](enums.EventOrderCanceled, enums.AggregateOrder),
		describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
		describe[payloads.ReservationEvent](enums.EventReservationHeld, enums.AggregateOrder),
		describe[payloads.ReservationEvent](enums.EventReservationReleased, enums.AggregateOrder),
		describe[payloads.ReservationsExpiredEvent](enums.EventReservationExpired, enums.AggregateSlot),
		describe[payloads.SlotReconciledEvent](enums.EventSlotReconciled, enums.AggregateSlot),
		describe[payloads.InventoryAdjustedEvent](enums.EventInventoryAdjusted, enums.AggregateInventory),
	}

	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		d.Topic = cfg.OrderEventsTopic
		reg.byType[d.EventType] = d
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is permanent: the row bytes never change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if err := checkRow(desc, event); err != nil {
		return nil, Permanent(err)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", event.EventType, err))
	}
	// envelopes written before these fields existed leave them empty
	if envelope.EventType != "" && envelope.EventType != event.EventType {
		return nil, Permanent(fmt.Errorf("envelope type %s does not match row type %s", envelope.EventType, event.EventType))
	}

	payload := desc.newPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func checkRow(desc EventDescriptor, event models.OutboxEvent) error {
	switch {
	case desc.AggregateType != event.AggregateType:
		return fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == "":
		return errors.New("missing aggregate_id")
	}
	return nil
}
