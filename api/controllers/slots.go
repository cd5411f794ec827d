package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/reservations"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

const defaultListDays = 7

// ListSlots returns the calendar starting at ?from (default today) for ?days
// days. Expired holds are reclaimed before the counts are read.
func ListSlots(svc SlotLister, maxDays int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "slot service unavailable"))
			return
		}

		days, err := validators.ParseQueryInt(r, "days", defaultListDays, 1, maxDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		openOnly, err := validators.ParseQueryBool(r, "open", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListSlots(r.Context(), reservations.ListInput{
			From:     strings.TrimSpace(r.URL.Query().Get("from")),
			Days:     days,
			OpenOnly: openOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"slots": newSlotViews(rows)})
	}
}
