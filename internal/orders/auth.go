package orders

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
)

// AuthenticateGuest resolves the order a guest credential grants access to.
// With lock set the order row is locked for the rest of the transaction.
// Unknown orders and wrong tokens fail identically.
func AuthenticateGuest(ctx context.Context, repo Repository, credential string, lock bool) (*models.Order, error) {
	orderID, token, err := guestsession.ParseCredential(credential)
	if err != nil {
		return nil, err
	}
	var order *models.Order
	if lock {
		order, err = repo.FindForUpdate(ctx, orderID)
	} else {
		order, err = repo.FindByID(ctx, orderID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, guestsession.ErrInvalid()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !guestsession.Verify(token, order.PublicAccessTokenHash) {
		return nil, guestsession.ErrInvalid()
	}
	return order, nil
}
