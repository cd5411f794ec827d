package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/slotbook-backend/api/middleware"
	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/api/validators"
	"github.com/angelmondragon/slotbook-backend/internal/inventory"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/pagination"
)

const maxReasonLen = 255

type adjustInventoryRequest struct {
	Type   string `json:"type" validate:"required,oneof=IN ADJUST"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason" validate:"notblank,max=255"`
}

type adjustInventoryResponse struct {
	Item     *inventoryView `json:"item"`
	Movement *movementView  `json:"movement"`
}

type movementPageResponse struct {
	Movements  []movementView `json:"movements"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// AdjustInventory records a manual stock movement for one variant.
func AdjustInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		var req adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementType, err := enums.ParseMovementType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}

		actor := middleware.SubjectFromContext(r.Context())
		item, movement, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			ProductID:  strings.TrimSpace(chi.URLParam(r, "productId")),
			VariantKey: strings.TrimSpace(chi.URLParam(r, "variantKey")),
			Type:       movementType,
			Delta:      req.Delta,
			Reason:     validators.SanitizeString(req.Reason, maxReasonLen),
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustInventoryResponse{
			Item:     newInventoryView(item),
			Movement: newMovementView(movement),
		})
	}
}

// GetInventory returns the stock record of one variant.
func GetInventory(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		item, err := svc.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "productId")), strings.TrimSpace(chi.URLParam(r, "variantKey")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryView(item))
	}
}

// ListMovements pages through the ledger, filtered by product and/or order.
func ListMovements(svc InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		input := inventory.ListMovementsInput{
			ProductID:  strings.TrimSpace(query.Get("productId")),
			VariantKey: strings.TrimSpace(query.Get("variantKey")),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(query.Get("cursor")),
			},
		}
		if input.OrderID, err = validators.ParseQueryUUID(r, "orderId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListMovements(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := movementPageResponse{
			Movements:  make([]movementView, 0, len(page.Movements)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Movements {
			resp.Movements = append(resp.Movements, *newMovementView(&page.Movements[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}
