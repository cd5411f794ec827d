package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

type configureSlotRequest struct {
	Capacity *int  `json:"capacity" validate:"omitempty,min=0"`
	IsOpen   *bool `json:"isOpen"`
}

// ConfigureSlot sets capacity and the open flag of /slots/{date}/{window},
// creating the slot when it does not exist yet.
func ConfigureSlot(svc SlotConfigurer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "slot store unavailable"))
			return
		}

		window, err := slots.ParseWindow(chi.URLParam(r, "window"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req configureSlotRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Capacity == nil && req.IsOpen == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "capacity or isOpen is required"))
			return
		}

		slot, err := svc.Configure(r.Context(), slots.ConfigureInput{
			Date:     strings.TrimSpace(chi.URLParam(r, "date")),
			Window:   window,
			Capacity: req.Capacity,
			IsOpen:   req.IsOpen,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSlotView(slot))
	}
}
