package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/pkg/checkout"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
)

// DraftResult is returned once, when the guest credential is minted.
type DraftResult struct {
	Order      *models.Order
	Credential string
}

// ReplaceItemsInput swaps a draft's cart lines.
type ReplaceItemsInput struct {
	Credential string
	Lines      []checkout.LineInput
}

// ConfirmPaymentInput is the external payment signal.
type ConfirmPaymentInput struct {
	OrderID uuid.UUID
	Method  string
	Actor   *outbox.ActorRef
}

// CancelInput cancels an order.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   *outbox.ActorRef
}

// CancelResult reports the side effects of a cancellation.
type CancelResult struct {
	Order          *models.Order
	Restocked      bool
	ReleasedSlotID *string
	// AlreadyCanceled is set when the call was a no-op.
	AlreadyCanceled bool
}

// UpdateStatusInput writes one of the fulfilment statuses.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Actor   *outbox.ActorRef
}
