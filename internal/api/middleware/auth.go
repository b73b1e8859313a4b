package middleware

import (
	"context"
	"errors"
	"net/http"

	"tasklane/internal/common"
	"tasklane/internal/common/security"
	"tasklane/internal/domain/model"
	"tasklane/internal/domain/repository"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const userCtxKey contextKey = "currentUser"

// Authenticator resolves the bearer token that jwtauth.Verifier parked in
// the request context into a full user identity. Handlers downstream only
// ever see the resolved user, never a raw token.
func Authenticator(userRepo repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())

			if err != nil || token == nil {
				if errors.Is(err, jwtauth.ErrNoTokenFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
				} else {
					common.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				}
				return
			}

			username, err := security.SubjectFromClaims(claims)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
				return
			}

			// The token may outlive its subject; a deleted user's token
			// must stop working even though tokens are stateless.
			user, err := userRepo.FindByUsername(r.Context(), username)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "Unknown token subject")
				} else {
					common.RespondWithError(w, http.StatusInternalServerError, "Failed to resolve token subject")
				}
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user placed by Authenticator.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userCtxKey).(*model.User)
	return user, ok
}
