package controllers

import (
	"net/http"

	"github.com/angelmondragon/slotbook-backend/api/middleware"
	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

type linesRequest struct {
	Items []checkout.LineInput `json:"items" validate:"required"`
}

type draftResponse struct {
	Order      *orderView `json:"order"`
	Credential string     `json:"credential"`
}

// CreateDraft prices the cart and opens a NEW order. The credential is only
// ever returned here, in the body and in the guest session header.
func CreateDraft(svc DraftService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var req linesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateDraft(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(guestsession.HeaderName, result.Credential)
		responses.WriteSuccessStatus(w, http.StatusCreated, draftResponse{
			Order:      newOrderView(result.Order),
			Credential: result.Credential,
		})
	}
}

// MyOrder returns the order the guest credential belongs to.
func MyOrder(svc DraftService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		order, err := svc.GetByCredential(r.Context(), middleware.GuestCredentialFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// ReplaceItems swaps the cart of a NEW order.
func ReplaceItems(svc DraftService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var req linesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ReplaceItems(r.Context(), orders.ReplaceItemsInput{
			Credential: middleware.GuestCredentialFromContext(r.Context()),
			Lines:      req.Items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}
