package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/handlers/render"
	"github.com/nkiryanov/netcraft/internal/handlers/userctx"
	"github.com/nkiryanov/netcraft/internal/models"
)

type authService interface {
	// Authenticate request. Has to return apperrors.ErrTokenRevoked if token was revoked
	Auth(ctx context.Context, r *http.Request) (models.User, models.TokenClaims, error)
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := as.Auth(r.Context(), r)
			switch {
			case errors.Is(err, apperrors.ErrTokenRevoked):
				render.ServiceError(w, "Token has been revoked", http.StatusUnauthorized)
				return
			case err != nil:
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
