package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

// RequireRole admits callers holding any of roles. It runs after Auth, so a
// missing identity is a 403 rather than a 401.
func RequireRole(logg *logger.Logger, roles ...enums.StaffRole) func(http.Handler) http.Handler {
	allowed := slices.Clone(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staff, ok := StaffFromContext(r.Context())
			if !ok || !slices.Contains(allowed, staff.Role) {
				err := pkgerrors.Newf(pkgerrors.CodeForbidden, "role %q may not call this route", staff.Role)
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
