package controllers

import (
	"net/http"

	"github.com/angelmondragon/slotbook-backend/api/middleware"
	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/reservations"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

type holdRequest struct {
	Date   string `json:"date" validate:"required"`
	Window string `json:"window" validate:"required"`
}

type holdResponse struct {
	Order     *orderView `json:"order"`
	Slot      *slotView  `json:"slot"`
	Refreshed bool       `json:"refreshed"`
}

type intentRequest struct {
	Type string `json:"type" validate:"required"`
}

// Hold books one seat of {date, window} for the guest's order.
func Hold(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		var req holdRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Hold(r.Context(), reservations.HoldInput{
			Credential: middleware.GuestCredentialFromContext(r.Context()),
			Date:       req.Date,
			Window:     req.Window,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, holdResponse{
			Order:     newOrderView(result.Order),
			Slot:      newSlotView(result.Slot),
			Refreshed: result.Refreshed,
		})
	}
}

// Release gives the guest's seat back. Releasing without a hold succeeds.
func Release(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		order, err := svc.Release(r.Context(), middleware.GuestCredentialFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// SetIntent records ASAP or SCHEDULED delivery. ASAP drops any hold.
func SetIntent(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		var req intentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SetIntent(r.Context(), middleware.GuestCredentialFromContext(r.Context()), req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}
