package middleware

import (
	"net/http"

	"github.com/angelmondragon/slotbook-backend/api/responses"
	pkgAuth "github.com/angelmondragon/slotbook-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

// TokenVerifier validates staff bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*pkgAuth.Claims, error)
}

// Auth admits admin and payment callers and seeds the request context with
// their subject and role. RequireRole narrows access per route.
func Auth(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithStaff(r.Context(), claims.Subject, claims.Role)
			if logg != nil {
				ctx = logg.WithRole(logg.WithSubject(ctx, claims.Subject), claims.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
