package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/slotbook-backend/api/middleware"
	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

const maxPaymentMethodLen = 64

type confirmPaymentRequest struct {
	Method string `json:"method" validate:"notblank,max=64"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type cancelResponse struct {
	Order           *orderView `json:"order"`
	Restocked       bool       `json:"restocked"`
	ReleasedSlotID  *string    `json:"releasedSlotId,omitempty"`
	AlreadyCanceled bool       `json:"alreadyCanceled"`
}

// AdminOrderDetail returns any order by id.
func AdminOrderDetail(svc OrderAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// ConfirmPayment applies the external payment signal: NEW → PAID, stock is
// decremented and an active hold is confirmed.
func ConfirmPayment(svc OrderAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmPayment(r.Context(), orders.ConfirmPaymentInput{
			OrderID: orderID,
			Method:  validators.SanitizeString(req.Method, maxPaymentMethodLen),
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// CancelOrder cancels any non-terminal order, restocking paid lines and
// giving back an active slot seat.
func CancelOrder(svc OrderAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID: orderID,
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{
			Order:           newOrderView(result.Order),
			Restocked:       result.Restocked,
			ReleasedSlotID:  result.ReleasedSlotID,
			AlreadyCanceled: result.AlreadyCanceled,
		})
	}
}

// UpdateOrderStatus writes one of the fulfilment statuses.
func UpdateOrderStatus(svc OrderAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID: orderID,
			Status:  status,
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
