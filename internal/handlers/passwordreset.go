package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/handlers/render"
	"github.com/nkiryanov/netcraft/internal/logger"
)

// Render errors shared by verify and reset endpoints
// Return false if error is unknown and was not rendered
func renderResetError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrResetCodeNotFound):
		render.ServiceError(w, "No valid OTP found. Please request a new one.", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrResetCodeUsed):
		render.ServiceError(w, "OTP code already used. Please request a new one.", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrResetCodeInvalid):
		render.ServiceError(w, "Invalid OTP code", http.StatusBadRequest)
	default:
		return false
	}
	return true
}

func handleForgotPassword(resetService resetService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := resetService.RequestReset(r.Context(), data.Email); err != nil {
			l.Error("Password reset request failed", "error", err.Error())
			render.ServiceError(w, "Password reset request failed. Please try again.", http.StatusBadRequest)
			return
		}

		// Same answer whether account exists or not
		render.Message(w, "If an account with this email exists, a password reset code has been sent.")
	})
}

func handleVerifyResetOTP(resetService resetService, l logger.Logger) http.Handler {
	type request struct {
		Email   string `json:"email" validate:"required,email"`
		OTPCode string `json:"otp_code" validate:"required,otp"`
	}
	type response struct {
		Message          string `json:"message"`
		ExpiresInMinutes int    `json:"reset_token_expires_in_minutes"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		left, err := resetService.VerifyCode(r.Context(), data.Email, data.OTPCode)
		if err != nil {
			if !renderResetError(w, err) {
				l.Error("OTP verification failed", "error", err.Error())
				render.ServiceError(w, "OTP verification failed", http.StatusBadRequest)
			}
			return
		}

		render.JSON(w, response{
			Message:          "OTP verified successfully",
			ExpiresInMinutes: int(math.Ceil(left.Minutes())),
		})
	})
}

func handleResetPassword(resetService resetService, l logger.Logger) http.Handler {
	type request struct {
		Email       string `json:"email" validate:"required,email"`
		OTPCode     string `json:"otp_code" validate:"required,otp"`
		NewPassword string `json:"new_password" validate:"required,password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = resetService.ResetPassword(r.Context(), data.Email, data.OTPCode, data.NewPassword)
		if err != nil {
			if !renderResetError(w, err) {
				l.Error("Password reset failed", "error", err.Error())
				render.ServiceError(w, "Password reset failed", http.StatusBadRequest)
			}
			return
		}

		render.Message(w, "Password reset successfully")
	})
}
