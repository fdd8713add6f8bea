package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/handlers/render"
	"github.com/nkiryanov/netcraft/internal/handlers/userctx"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/service/user"
)

type tokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func handleRegister(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Nickname  string `json:"nickname" validate:"required,min=3,max=50"`
		Email     string `json:"email" validate:"required,email"`
		Password  string `json:"password" validate:"required,password"`
		FirstName string `json:"first_name" validate:"required,max=100"`
		LastName  string `json:"last_name" validate:"required,max=100"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Register(r.Context(), user.NewUser{
			Nickname:  data.Nickname,
			Email:     data.Email,
			Password:  data.Password,
			FirstName: data.FirstName,
			LastName:  data.LastName,
		})
		switch {
		case err == nil:
			authService.SetTokenPairToResponse(w, pair)
			render.JSONWithStatus(w, tokenResponse{Message: "User registered successfully", Token: pair.Access.Value}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with this email or nickname already exists", http.StatusConflict)
		default:
			l.Error("Registration failed", "error", err.Error())
			render.ServiceError(w, "Registration failed. Please try again.", http.StatusBadRequest)
		}
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			authService.SetTokenPairToResponse(w, pair)
			render.JSON(w, tokenResponse{Message: "Login successful", Token: pair.Access.Value})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			l.Error("Login failed", "error", err.Error())
			render.ServiceError(w, "Login failed", http.StatusBadRequest)
		}
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := authService.RefreshPair(r.Context(), refresh)
		switch {
		case err == nil:
			authService.SetTokenPairToResponse(w, pair)
			render.JSON(w, tokenResponse{Message: "Tokens refreshed successfully", Token: pair.Access.Value})
		case errors.Is(err, apperrors.ErrTokenRevoked):
			render.ServiceError(w, "Token has been revoked", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Refresh token is invalid", http.StatusUnauthorized)
		default:
			l.Error("Token refresh failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := userctx.ClaimsFromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		// Refresh cookie is optional here
		refresh, _ := authService.GetRefreshString(r)

		err := authService.Logout(r.Context(), claims, refresh)
		if err != nil {
			if errors.Is(err, apperrors.ErrTokenAlreadyRevoked) {
				l.Warn("Logout with already revoked token", "jti", claims.ID, "user_id", claims.UserID.String())
			} else {
				l.Error("Logout failed", "user_id", claims.UserID.String(), "error", err.Error())
			}
			render.ServiceError(w, "Logout failed", http.StatusBadRequest)
			return
		}

		authService.ClearTokenPairFromResponse(w)
		render.Message(w, "Successfully logged out")
	})
}

func handleChangePassword(userService userService, l logger.Logger) http.Handler {
	type request struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = userService.ChangePassword(r.Context(), u.ID, data.CurrentPassword, data.NewPassword)
		switch {
		case err == nil:
			render.Message(w, "Password changed successfully")
		case errors.Is(err, apperrors.ErrInvalidPassword):
			render.ServiceError(w, "Invalid current password", http.StatusUnauthorized)
		default:
			l.Error("Password change failed", "user_id", u.ID.String(), "error", err.Error())
			render.ServiceError(w, "Password change failed", http.StatusBadRequest)
		}
	})
}
