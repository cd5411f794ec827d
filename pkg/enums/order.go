package enums

// OrderStatus is the fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusNew            OrderStatus = "NEW"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusInProduction   OrderStatus = "IN_PRODUCTION"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCanceled       OrderStatus = "CANCELED"
)

var orderStatuses = newSet("order status",
	OrderStatusNew,
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusInProduction,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCanceled,
)

func (o OrderStatus) String() string { return string(o) }
func (o OrderStatus) IsValid() bool  { return orderStatuses.has(o) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse(value)
}

// IsTerminal reports whether no further transition is allowed.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCanceled
}

// IsFulfilment reports whether the status belongs to the post-payment
// fulfilment chain that is written without side effects.
func (o OrderStatus) IsFulfilment() bool {
	switch o {
	case OrderStatusConfirmed, OrderStatusInProduction, OrderStatusOutForDelivery, OrderStatusDelivered:
		return true
	}
	return false
}

// PaymentStatus tracks whether the payment signal has been received.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
)

var paymentStatuses = newSet("payment status", PaymentStatusUnpaid, PaymentStatusPaid)

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return paymentStatuses.has(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse(value)
}

// DeliveryType is the shopper's delivery intent.
type DeliveryType string

const (
	DeliveryTypeASAP      DeliveryType = "ASAP"
	DeliveryTypeScheduled DeliveryType = "SCHEDULED"
)

var deliveryTypes = newSet("delivery type", DeliveryTypeASAP, DeliveryTypeScheduled)

func (d DeliveryType) String() string { return string(d) }
func (d DeliveryType) IsValid() bool  { return deliveryTypes.has(d) }

func ParseDeliveryType(value string) (DeliveryType, error) {
	return deliveryTypes.parse(value)
}

// ReservationStatus is the state of an order's slot hold.
type ReservationStatus string

const (
	ReservationStatusNone      ReservationStatus = "NONE"
	ReservationStatusHeld      ReservationStatus = "HELD"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

var reservationStatuses = newSet("reservation status",
	ReservationStatusNone,
	ReservationStatusHeld,
	ReservationStatusConfirmed,
	ReservationStatusReleased,
	ReservationStatusExpired,
)

func (r ReservationStatus) String() string { return string(r) }
func (r ReservationStatus) IsValid() bool  { return reservationStatuses.has(r) }

func ParseReservationStatus(value string) (ReservationStatus, error) {
	return reservationStatuses.parse(value)
}

// IsActive reports whether the reservation still counts against its slot.
func (r ReservationStatus) IsActive() bool {
	return r == ReservationStatusHeld || r == ReservationStatusConfirmed
}

// ActiveReservationStatuses lists the statuses counted by reconciliation.
func ActiveReservationStatuses() []ReservationStatus {
	return []ReservationStatus{ReservationStatusHeld, ReservationStatusConfirmed}
}
