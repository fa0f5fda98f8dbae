package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Veraticus/spice-insights/internal/identity"
)

type contextKey string

const userKey contextKey = "user"

const msgUnauthorized = "Missing or invalid Authorization header"

// UserFromContext returns the authenticated caller.
func UserFromContext(ctx context.Context) (*identity.User, bool) {
	u, ok := ctx.Value(userKey).(*identity.User)
	return u, ok
}

// AuthMiddleware resolves the bearer token to a user. Requests without a
// valid token get 401.
func AuthMiddleware(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := identity.BearerToken(r.Header.Get("Authorization"))
			if !ok || verifier == nil {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			user, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, msgUnauthorized)
					return
				}
				writeError(w, http.StatusBadGateway, "Could not verify token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
