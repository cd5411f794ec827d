package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

// GuestSession requires the guest credential header. The credential itself is
// verified by the services against the order it names, so a missing header
// fails the same way a wrong one does.
func GuestSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := strings.TrimSpace(r.Header.Get(guestsession.HeaderName))
			if credential == "" {
				responses.WriteError(r.Context(), logg, w, guestsession.ErrInvalid())
				return
			}

			ctx := WithGuestCredential(r.Context(), credential)
			if logg != nil {
				if orderID, _, err := guestsession.ParseCredential(credential); err == nil {
					ctx = logg.WithOrderID(ctx, orderID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
