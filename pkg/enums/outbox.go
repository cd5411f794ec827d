package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateSlot      OutboxAggregateType = "slot"
	AggregateInventory OutboxAggregateType = "inventory"
)

var aggregateTypes = newSet("aggregate type", AggregateOrder, AggregateSlot, AggregateInventory)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType maps to the event_type column of outbox_events and the
// event_type message attribute.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderPaid           OutboxEventType = "order_paid"
	EventOrderCanceled       OutboxEventType = "order_canceled"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventReservationHeld     OutboxEventType = "reservation_held"
	EventReservationReleased OutboxEventType = "reservation_released"
	EventReservationExpired  OutboxEventType = "reservation_expired"
	EventSlotReconciled      OutboxEventType = "slot_reconciled"
	EventInventoryAdjusted   OutboxEventType = "inventory_adjusted"
)

var eventTypes = newSet("event type",
	EventOrderCreated,
	EventOrderPaid,
	EventOrderCanceled,
	EventOrderStatusChanged,
	EventReservationHeld,
	EventReservationReleased,
	EventReservationExpired,
	EventSlotReconciled,
	EventInventoryAdjusted,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse(value)
}
